// Package querybuilder turns a {mode, text} search request into a bleve
// query.Query tree (spec.md §4.6, QueryBuilder). It builds query objects
// directly rather than going through bleve's Lucene-like query-string
// parser: every mode needs a shape (weighted disjunction, explicit phrase,
// single wildcard/regex/fuzzy term) that maps onto one constructor call, and
// building objects directly means the operator allow-list (`::`, `->`,
// `: IFoo`, ...) never needs escaping in the first place — those substrings
// are just terms, not query-string syntax, because content_patterns
// tokenizes them as whitespace-delimited clumps ("std::cout" is one term,
// ": IFoo" the two adjacent terms ":" and "IFoo").
package querybuilder

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
	coderrors "github.com/coderadar-dev/coderadar/internal/errors"
	"github.com/coderadar-dev/coderadar/internal/tokenizer"
)

// Mode is one of the seven query modes spec.md §4.6 defines.
type Mode string

const (
	ModeLiteral  Mode = "literal"
	ModeCode     Mode = "code"
	ModeStandard Mode = "standard"
	ModeWildcard Mode = "wildcard"
	ModeRegex    Mode = "regex"
	ModeFuzzy    Mode = "fuzzy"
	ModePhrase   Mode = "phrase"
)

// Request is the caller-facing search request before it becomes a query tree.
type Request struct {
	Text          string
	Mode          Mode
	CaseSensitive bool
}

// Built is QueryBuilder's output: the bleve query plus everything Searcher
// and LineResolver need downstream.
type Built struct {
	Query            query.Query
	HighlightTerms   []string // substrings LineResolver scans raw lines for
	FuzzyTerm        string   // set only in fuzzy mode
	FuzzyMaxDistance int      // set only in fuzzy mode
	Diagnostics      []string // caller-facing notes (e.g. "regex does not cross tokens")
}

// Build parses req into a query tree per its mode.
func Build(req Request, cfg cfgpkg.Search) (*Built, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, coderrors.QueryMalformed("querybuilder.build", req.Text, errEmptyQuery)
	}

	switch req.Mode {
	case ModeLiteral:
		return buildLiteral(text, false)
	case ModeCode:
		return buildLiteral(text, true)
	case ModeStandard:
		return buildStandard(text)
	case ModeWildcard:
		return buildWildcard(text)
	case ModeRegex:
		return buildRegex(text)
	case ModeFuzzy:
		return buildFuzzy(text, cfg.FuzzyMaxDistance)
	case ModePhrase:
		return buildPhrase(text)
	default:
		return nil, coderrors.QueryMalformed("querybuilder.build", string(req.Mode), errUnknownMode)
	}
}

var (
	errEmptyQuery  = simpleErr("query text is empty")
	errUnknownMode = simpleErr("unknown query mode")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

// buildLiteral matches spec.md §4.6 literal/code: a phrase query against
// content_patterns, whose whitespace-only analyzer preserves punctuation
// clumps intact so ": IFoo" and "std::cout" survive as contiguous terms. In
// code mode it additionally ORs a content_symbols phrase query built from
// any CamelCase-split subtokens discovered in the text.
func buildLiteral(text string, codeMode bool) (*Built, error) {
	patterns := query.NewMatchPhraseQuery(text)
	patterns.SetField("content_patterns")

	b := &Built{HighlightTerms: []string{text}}

	if !codeMode {
		b.Query = patterns
		return b, nil
	}

	subtokens := camelSubtokens(text)
	if len(subtokens) == 0 {
		b.Query = patterns
		return b, nil
	}

	symbols := query.NewMatchPhraseQuery(strings.Join(subtokens, " "))
	symbols.SetField("content_symbols")

	disj := bleve.NewDisjunctionQuery(patterns, symbols)
	b.Query = disj
	b.HighlightTerms = append(b.HighlightTerms, subtokens...)
	return b, nil
}

// buildStandard matches spec.md §4.6 standard: a weighted OR across content
// (1.0), filename (2.0), and content_symbols (1.5). The content and
// content_symbols clauses AND their terms; the filename clause is a single
// wildcard match of the whole lowercased text as a substring of
// filename_lower.
func buildStandard(text string) (*Built, error) {
	content := query.NewMatchQuery(text)
	content.SetField("content")
	content.Operator = query.MatchQueryOperatorAnd
	content.SetBoost(1.0)

	filename := query.NewWildcardQuery("*" + strings.ToLower(text) + "*")
	filename.SetField("filename_lower")
	filename.SetBoost(2.0)

	symbols := query.NewMatchQuery(text)
	symbols.SetField("content_symbols")
	symbols.Operator = query.MatchQueryOperatorAnd
	symbols.SetBoost(1.5)

	disj := bleve.NewDisjunctionQuery(content, filename, symbols)
	disj.SetMin(1)

	return &Built{
		Query:          disj,
		HighlightTerms: strings.Fields(text),
	}, nil
}

// buildWildcard matches spec.md §4.6 wildcard: a single wildcard term
// against content, also matched against filename_lower with a boost.
// Leading wildcards are permitted but flagged as potentially slow.
func buildWildcard(text string) (*Built, error) {
	content := query.NewWildcardQuery(text)
	content.SetField("content")

	filename := query.NewWildcardQuery(strings.ToLower(text))
	filename.SetField("filename_lower")
	filename.SetBoost(1.5)

	disj := bleve.NewDisjunctionQuery(content, filename)

	b := &Built{
		Query:          disj,
		HighlightTerms: []string{strings.Trim(text, "*?")},
	}
	if strings.HasPrefix(text, "*") || strings.HasPrefix(text, "?") {
		b.Diagnostics = append(b.Diagnostics, "leading wildcard may be slow: it cannot use the term index prefix")
	}
	return b, nil
}

// buildRegex matches spec.md §4.6 regex: a regexp term against content.
// Bleve's regexp query matches within one analyzed token, never across
// token boundaries, so "User.*Service" will not match "UserService" split
// across adjacent tokens — callers are told this explicitly.
func buildRegex(text string) (*Built, error) {
	q := query.NewRegexpQuery(text)
	q.SetField("content")
	return &Built{
		Query:       q,
		Diagnostics: []string{"regex matches within a single token; it does not span token boundaries"},
	}, nil
}

// buildFuzzy matches spec.md §4.6 fuzzy: edit-distance search capped at
// maxDistance (default 2). Bleve's native FuzzyQuery implements a Levenshtein
// automaton (insert/delete/substitute, no transposition); FuzzyTerm and
// FuzzyMaxDistance are carried through so Searcher can apply go-edlib's
// Damerau-Levenshtein distance (which also credits adjacent-transposition
// typos, e.g. "teh" for "the") as a precise secondary filter over bleve's
// broader recall net.
func buildFuzzy(text string, maxDistance int) (*Built, error) {
	if maxDistance <= 0 {
		maxDistance = 2
	}
	if maxDistance > 2 {
		maxDistance = 2 // bleve's FuzzyQuery only supports fuzziness 1 or 2
	}
	q := query.NewFuzzyQuery(text)
	q.SetField("content")
	q.Fuzziness = maxDistance

	return &Built{
		Query:            q,
		HighlightTerms:   []string{text},
		FuzzyTerm:        text,
		FuzzyMaxDistance: maxDistance,
	}, nil
}

// buildPhrase matches spec.md §4.6 phrase: explicit phrase query, slop 0,
// against content.
func buildPhrase(text string) (*Built, error) {
	q := query.NewMatchPhraseQuery(text)
	q.SetField("content")
	q.SetSlop(0)
	return &Built{
		Query:          q,
		HighlightTerms: []string{text},
	}, nil
}

// camelSubtokens splits each whitespace-separated word of text on
// camelCase/snake_case boundaries, returning only the words that actually
// split (a single already-lowercase word contributes nothing new).
func camelSubtokens(text string) []string {
	var out []string
	for _, word := range strings.Fields(text) {
		parts := tokenizer.SplitCamelCase(word)
		if len(parts) <= 1 {
			continue
		}
		out = append(out, parts...)
	}
	return out
}
