package indexstore

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/coderadar-dev/coderadar/internal/tokenizer"
)

// buildMapping defines the per-document field mapping for a workspace's
// index: three parallel analyses of the same file content (spec.md §3), the
// keyword path/filename/directory fields FileIndexer fills in (QueryBuilder
// matches filenames by substring against filename_lower), and the
// numeric/date fields Scorer reads back out of search hits.
func buildMapping() *mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = tokenizer.AnalyzerContent
	im.DefaultType = "document"
	im.TypeField = "_type"

	dm := bleve.NewDocumentMapping()

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name
	kw.Store = true
	kw.IncludeInAll = false

	content := bleve.NewTextFieldMapping()
	content.Analyzer = tokenizer.AnalyzerContent
	content.Store = true
	content.IncludeInAll = false

	symbols := bleve.NewTextFieldMapping()
	symbols.Analyzer = tokenizer.AnalyzerContentSymbols
	symbols.Store = false
	symbols.IncludeInAll = false

	patterns := bleve.NewTextFieldMapping()
	patterns.Analyzer = tokenizer.AnalyzerContentPatterns
	patterns.Store = false
	patterns.IncludeInAll = false

	numeric := bleve.NewNumericFieldMapping()
	numeric.Store = true
	numeric.IncludeInAll = false

	date := bleve.NewDateTimeFieldMapping()
	date.Store = true
	date.IncludeInAll = false

	dm.AddFieldMappingsAt("path", kw)
	dm.AddFieldMappingsAt("relative_path", kw)
	dm.AddFieldMappingsAt("filename", kw)
	dm.AddFieldMappingsAt("filename_lower", kw)
	dm.AddFieldMappingsAt("extension", kw)
	dm.AddFieldMappingsAt("directory", kw)
	dm.AddFieldMappingsAt("relative_directory", kw)
	dm.AddFieldMappingsAt("directory_name", kw)
	dm.AddFieldMappingsAt("content_hash", kw)
	dm.AddFieldMappingsAt("size", numeric)
	dm.AddFieldMappingsAt("line_count", numeric)
	dm.AddFieldMappingsAt("modified", date)
	dm.AddFieldMappingsAt("content", content)
	dm.AddFieldMappingsAt("content_symbols", symbols)
	dm.AddFieldMappingsAt("content_patterns", patterns)

	im.AddDocumentMapping("document", dm)
	im.DefaultMapping = dm

	return im
}
