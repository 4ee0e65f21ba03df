// Package lineresolver finds the lines of a document's stored content that
// contain any of a set of terms and reports each as a 1-based line number
// with a clamped context window (spec.md §4.1, LineResolver). It works over
// raw text, not tokens: matching is case-insensitive substring containment,
// and FirstMatch's optional byte-offset hint only picks where its scan
// starts (Searcher always passes 0).
package lineresolver

import "strings"

// Match is one line-accurate hit inside a document's content.
type Match struct {
	Line        int // 1-based
	LineText    string
	ContextPre  []string
	ContextPost []string
}

// lineStarts returns, for each line (0-indexed), the byte offset its first
// character begins at.
func lineStarts(content string) []int {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf returns the 0-indexed line number containing byte offset pos.
func lineOf(starts []int, pos int) int {
	lo, hi := 0, len(starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if starts[mid] <= pos {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// lines splits content on '\n'; no returned line keeps its newline. Content
// ending in '\n' yields a final empty line, so the count is the number of
// newlines plus one, the same as the document's line_count.
func lines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// FirstMatch returns the first line in content at or after byte offset
// hintOffset that contains any of terms (case-insensitive substring match);
// if no such line follows the hint, it returns the first matching line
// before it instead. The match carries contextLines of surrounding context
// on each side clamped to [1, line_count]. ok is false if no line contains
// any term.
func FirstMatch(content string, terms []string, hintOffset, contextLines int) (Match, bool) {
	ls := lines(content)
	if len(ls) == 0 || len(terms) == 0 {
		return Match{}, false
	}
	starts := lineStarts(content)
	startLine := 0
	if hintOffset > 0 {
		startLine = lineOf(starts, hintOffset)
	}

	lowerTerms := make([]string, len(terms))
	for i, t := range terms {
		lowerTerms[i] = strings.ToLower(t)
	}

	for i := startLine; i < len(ls); i++ {
		if lineContainsAny(ls[i], lowerTerms) {
			return buildMatch(ls, i, contextLines), true
		}
	}
	// Hint offset may have landed past the actual match line (e.g. due to
	// analyzer-side offset drift); fall back to a full scan from the top.
	for i := 0; i < startLine; i++ {
		if lineContainsAny(ls[i], lowerTerms) {
			return buildMatch(ls, i, contextLines), true
		}
	}
	return Match{}, false
}

// AllMatches returns every line in content containing any of terms, in
// ascending line order.
func AllMatches(content string, terms []string, contextLines int) []Match {
	ls := lines(content)
	if len(ls) == 0 || len(terms) == 0 {
		return nil
	}
	lowerTerms := make([]string, len(terms))
	for i, t := range terms {
		lowerTerms[i] = strings.ToLower(t)
	}

	var out []Match
	for i := range ls {
		if lineContainsAny(ls[i], lowerTerms) {
			out = append(out, buildMatch(ls, i, contextLines))
		}
	}
	return out
}

func lineContainsAny(line string, lowerTerms []string) bool {
	lower := strings.ToLower(line)
	for _, t := range lowerTerms {
		if t != "" && strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func buildMatch(ls []string, idx, contextLines int) Match {
	m := Match{Line: idx + 1, LineText: ls[idx]}
	lo := idx - contextLines
	if lo < 0 {
		lo = 0
	}
	hi := idx + contextLines
	if hi > len(ls)-1 {
		hi = len(ls) - 1
	}
	if lo < idx {
		m.ContextPre = append([]string(nil), ls[lo:idx]...)
	}
	if hi > idx {
		m.ContextPost = append([]string(nil), ls[idx+1:hi+1]...)
	}
	return m
}
