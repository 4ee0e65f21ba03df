// Package searcher implements the document-level and line-level search
// pipelines (spec.md §4.8, Searcher): build the query, run it against an
// already-open workspace index, resolve line-accurate matches, score, sort,
// and truncate.
package searcher

import (
	"context"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/hbollon/go-edlib"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
	"github.com/coderadar-dev/coderadar/internal/indexstore"
	"github.com/coderadar-dev/coderadar/internal/lineresolver"
	"github.com/coderadar-dev/coderadar/internal/querybuilder"
	"github.com/coderadar-dev/coderadar/internal/scorer"
	"github.com/coderadar-dev/coderadar/internal/tokenizer"
)

var storedFields = []string{"path", "relative_path", "filename", "content", "size", "modified"}

// Hit is one document-level search result.
type Hit struct {
	Path         string
	RelativePath string
	Score        float64
	Line         int
	LineText     string
	ContextPre   []string
	ContextPost  []string
}

// Result is the outcome of Search.
type Result struct {
	Hits      []Hit
	Truncated bool
}

// LineHit is one line-level search result.
type LineHit struct {
	Path         string
	RelativePath string
	Score        float64 // the owning file's score
	Line         int
	LineText     string
}

// LineResult is the outcome of SearchLines.
type LineResult struct {
	Hits      []LineHit
	Truncated bool
}

// Search runs req against store, following spec.md §4.8 steps 2-7. The
// caller (internal/engine, via WorkspaceManager) is responsible for step 1,
// resolving/opening the workspace.
func Search(ctx context.Context, store *indexstore.Store, req querybuilder.Request, limit int, includeContext bool, cfg cfgpkg.Search) (Result, error) {
	built, err := querybuilder.Build(req, cfg)
	if err != nil {
		return Result{}, err
	}

	overfetch := overfetchSize(limit, cfg.OverfetchMultiplier)
	sreq := bleve.NewSearchRequest(built.Query)
	sreq.Size = overfetch
	sreq.Fields = storedFields

	res, searchErr := store.Index().SearchInContext(ctx, sreq)
	if searchErr != nil {
		if ctx.Err() != nil {
			return Result{Truncated: true}, nil
		}
		return Result{}, searchErr
	}

	now := time.Now()
	candidates := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		content, _ := h.Fields["content"].(string)
		relPath, _ := h.Fields["relative_path"].(string)
		absPath, _ := h.Fields["path"].(string)
		filename, _ := h.Fields["filename"].(string)
		size := fieldFloat(h.Fields["size"])
		modified := fieldTime(h.Fields["modified"])

		if built.FuzzyTerm != "" && !fuzzyContains(content, built.FuzzyTerm, built.FuzzyMaxDistance) {
			continue
		}

		match, ok := lineresolver.FirstMatch(content, built.HighlightTerms, 0, cfg.DefaultContextLines)
		if h.Score == 0 && !ok {
			continue
		}

		factors := scorer.Score(h.Score, req.Text, filename, modified, now, int64(size))
		hit := Hit{
			Path:         absPath,
			RelativePath: relPath,
			Score:        factors.Final(),
		}
		if ok {
			hit.Line = match.Line
			hit.LineText = match.LineText
			if includeContext {
				hit.ContextPre = match.ContextPre
				hit.ContextPost = match.ContextPost
			}
		}
		candidates = append(candidates, hit)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return Result{Hits: candidates, Truncated: ctx.Err() != nil}, nil
}

// SearchLines runs req against store, enumerating every matching line per
// candidate document rather than just the first (spec.md §4.8).
func SearchLines(ctx context.Context, store *indexstore.Store, req querybuilder.Request, limit int, cfg cfgpkg.Search) (LineResult, error) {
	built, err := querybuilder.Build(req, cfg)
	if err != nil {
		return LineResult{}, err
	}

	overfetch := overfetchSize(limit, cfg.OverfetchMultiplier)
	sreq := bleve.NewSearchRequest(built.Query)
	sreq.Size = overfetch
	sreq.Fields = storedFields

	res, searchErr := store.Index().SearchInContext(ctx, sreq)
	if searchErr != nil {
		if ctx.Err() != nil {
			return LineResult{Truncated: true}, nil
		}
		return LineResult{}, searchErr
	}

	now := time.Now()
	var hits []LineHit
	for _, h := range res.Hits {
		content, _ := h.Fields["content"].(string)
		relPath, _ := h.Fields["relative_path"].(string)
		absPath, _ := h.Fields["path"].(string)
		filename, _ := h.Fields["filename"].(string)
		size := fieldFloat(h.Fields["size"])
		modified := fieldTime(h.Fields["modified"])

		if built.FuzzyTerm != "" && !fuzzyContains(content, built.FuzzyTerm, built.FuzzyMaxDistance) {
			continue
		}

		factors := scorer.Score(h.Score, req.Text, filename, modified, now, int64(size))
		fileScore := factors.Final()

		for _, m := range lineresolver.AllMatches(content, built.HighlightTerms, 0) {
			hits = append(hits, LineHit{
				Path:         absPath,
				RelativePath: relPath,
				Score:        fileScore,
				Line:         m.Line,
				LineText:     m.LineText,
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Line < hits[j].Line
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	return LineResult{Hits: hits, Truncated: ctx.Err() != nil}, nil
}

func overfetchSize(limit, multiplier int) int {
	if multiplier <= 0 {
		multiplier = 2
	}
	if limit <= 0 {
		limit = 10
	}
	return limit * multiplier
}

func fieldFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

// fuzzyContains applies go-edlib's Damerau-Levenshtein distance as a precise
// secondary filter over bleve's broader (transposition-blind) FuzzyQuery
// recall net: it scans content's identifier tokens for one within
// maxDistance of term, crediting adjacent-transposition typos ("teh" for
// "the") that bleve's native fuzziness misses entirely.
func fuzzyContains(content, term string, maxDistance int) bool {
	if content == "" {
		return false
	}
	seen := make(map[string]bool)
	for _, tok := range tokenizer.Scan([]byte(content), tokenizer.ModeIdentifiers) {
		word := tok.Text
		if seen[word] {
			continue
		}
		seen[word] = true
		if edlib.DamerauLevenshteinDistance(word, term) <= maxDistance {
			return true
		}
	}
	return false
}

func fieldTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
