package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
)

// isPureIdentifier reports whether every rune in term is an identifier
// character (letter, digit, or underscore) — i.e. it is a plain rule-6
// identifier or an extracted inner-identifier synonym, not a composite
// token like ": IFoo" or "List<string>" that embeds punctuation.
func isPureIdentifier(term []byte) bool {
	for len(term) > 0 {
		r, sz := utf8.DecodeRune(term)
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
		term = term[sz:]
	}
	return true
}

// Names of the registered tokenizers, token filters, and analyzers. The
// three analyzer names are also the field-mapping analyzer names IndexStore
// assigns to content, content_symbols, and content_patterns.
const (
	TokenizerFull        = "coderadar_code"
	TokenizerIdentifiers = "coderadar_identifiers"
	TokenizerPatterns    = "coderadar_patterns"

	FilterCamelCase = "coderadar_camelcase"
	FilterLowerCase = "coderadar_lowercase"
	FilterLength    = "coderadar_length"

	AnalyzerContent         = "coderadar_content"
	AnalyzerContentSymbols  = "coderadar_content_symbols"
	AnalyzerContentPatterns = "coderadar_content_patterns"
)

func init() {
	registry.RegisterTokenizer(TokenizerFull, func(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
		return &bleveTokenizer{mode: ModeFull}, nil
	})
	registry.RegisterTokenizer(TokenizerIdentifiers, func(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
		return &bleveTokenizer{mode: ModeIdentifiers}, nil
	})
	registry.RegisterTokenizer(TokenizerPatterns, func(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
		return &bleveTokenizer{mode: ModePatterns}, nil
	})

	registry.RegisterTokenFilter(FilterCamelCase, func(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
		return CamelCaseFilter{}, nil
	})
	registry.RegisterTokenFilter(FilterLowerCase, func(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
		return LowerCaseFilter{}, nil
	})
	registry.RegisterTokenFilter(FilterLength, func(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
		return LengthFilter{}, nil
	})

	registry.RegisterAnalyzer(AnalyzerContent, func(config map[string]interface{}, cache *registry.Cache) (*analysis.Analyzer, error) {
		return &analysis.Analyzer{
			Tokenizer:    &bleveTokenizer{mode: ModeFull},
			TokenFilters: []analysis.TokenFilter{CamelCaseFilter{}, LowerCaseFilter{}, LengthFilter{}},
		}, nil
	})
	registry.RegisterAnalyzer(AnalyzerContentSymbols, func(config map[string]interface{}, cache *registry.Cache) (*analysis.Analyzer, error) {
		return &analysis.Analyzer{
			Tokenizer:    &bleveTokenizer{mode: ModeIdentifiers},
			TokenFilters: []analysis.TokenFilter{CamelCaseFilter{}, LowerCaseFilter{}},
		}, nil
	})
	registry.RegisterAnalyzer(AnalyzerContentPatterns, func(config map[string]interface{}, cache *registry.Cache) (*analysis.Analyzer, error) {
		return &analysis.Analyzer{
			Tokenizer: &bleveTokenizer{mode: ModePatterns},
		}, nil
	})
}

// bleveTokenizer adapts Scan to bleve's analysis.Tokenizer interface.
type bleveTokenizer struct {
	mode Mode
}

func (t *bleveTokenizer) Tokenize(input []byte) analysis.TokenStream {
	tokens := Scan(input, t.mode)
	stream := make(analysis.TokenStream, 0, len(tokens))
	for _, tok := range tokens {
		typ := analysis.AlphaNumeric
		if tok.Operator {
			typ = analysis.Single
		}
		stream = append(stream, &analysis.Token{
			Start:    tok.Start,
			End:      tok.End,
			Term:     []byte(tok.Text),
			Position: tok.Position,
			Type:     typ,
		})
	}
	return stream
}

// CamelCaseFilter expands each non-operator token into its camelCase /
// snake_case sub-words, inserted at the positions right after the parent's
// own Position, one per sub-word, so consecutive sub-words occupy adjacent
// positions ("GetCurrentUserId" at 4 -> Get=5, Current=6, User=7, Id=8). Bleve's
// phrase matcher requires sequential positions between consecutive terms, so
// a shared position for every sub-word would make a phrase query like
// "Current User" unmatchable. The parent token itself is kept at its
// original position, so "GetCurrentUserId" still matches a literal
// exact-string search in addition to "current" or "user". Every token after
// an expanded one is shifted forward by the number of sub-words inserted, so
// the stream's positions stay strictly ordered end to end.
type CamelCaseFilter struct{}

func (CamelCaseFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := make(analysis.TokenStream, 0, len(input))
	shift := 0
	for _, tok := range input {
		tok.Position += shift
		out = append(out, tok)
		if tok.Type == analysis.Single || !isPureIdentifier(tok.Term) {
			continue
		}
		parts := SplitCamelCase(string(tok.Term))
		if len(parts) <= 1 {
			continue
		}
		base := tok.Position
		n := 0
		for _, p := range parts {
			if p == "" {
				continue
			}
			n++
			out = append(out, &analysis.Token{
				Start:    tok.Start,
				End:      tok.End,
				Term:     []byte(p),
				Position: base + n,
				Type:     analysis.AlphaNumeric,
			})
		}
		shift += n
	}
	return out
}

// LowerCaseFilter lowercases every token's term. Operator tokens pass
// through unaffected since case folding is a no-op on punctuation.
type LowerCaseFilter struct{}

func (LowerCaseFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	for _, tok := range input {
		tok.Term = []byte(strings.ToLower(string(tok.Term)))
	}
	return input
}

// LengthFilter drops single-character tokens unless they are operator
// punctuation (so "<", ">", ":" etc. survive, but a lone "a" or "I" does not).
type LengthFilter struct{}

func (LengthFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if len(tok.Term) <= 1 && tok.Type != analysis.Single {
			continue
		}
		out = append(out, tok)
	}
	return out
}
