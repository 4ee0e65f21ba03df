// Package scorer computes the final per-hit score Searcher sorts by
// (spec.md §4.7, Scorer): base text similarity from the index, adjusted by
// a filename-match boost, a recency factor, and a size penalty.
package scorer

import (
	"math"
	"strings"
	"time"
)

// Factors holds the four multiplicands that make up a hit's final score.
// Kept separate from the product so callers (tests, diagnostics) can see
// which factor moved a result.
type Factors struct {
	TextScore     float64
	FilenameBoost float64
	RecencyFactor float64
	SizePenalty   float64
}

// Final returns the product of all four factors: text * filename * recency
// * size. Scoring is a pure function of its inputs, so it is deterministic
// per index snapshot.
func (f Factors) Final() float64 {
	return f.TextScore * f.FilenameBoost * f.RecencyFactor * f.SizePenalty
}

// Score computes a hit's Factors.
//
//   - textScore is the raw score bleve assigned the document for the query.
//   - queryText is the original query string, matched case-insensitively as
//     a substring of filename for the 1.5x filename-match boost.
//   - modified/now give the document's age in days for the recency factor:
//     exp(-age_days/30), clamped to [0.5, 1.5].
//   - sizeBytes drives a linear size penalty from 1.0 at 0 bytes down to 0.5
//     at 1MB and beyond, deprioritizing huge generated files.
func Score(textScore float64, queryText, filename string, modified, now time.Time, sizeBytes int64) Factors {
	return Factors{
		TextScore:     textScore,
		FilenameBoost: filenameMatchBoost(queryText, filename),
		RecencyFactor: recencyFactor(modified, now),
		SizePenalty:   sizePenalty(sizeBytes),
	}
}

func filenameMatchBoost(queryText, filename string) float64 {
	if queryText == "" {
		return 1.0
	}
	if strings.Contains(strings.ToLower(filename), strings.ToLower(queryText)) {
		return 1.5
	}
	return 1.0
}

func recencyFactor(modified, now time.Time) float64 {
	ageDays := now.Sub(modified).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	f := math.Exp(-ageDays / 30)
	if f < 0.5 {
		return 0.5
	}
	if f > 1.5 {
		return 1.5
	}
	return f
}

const sizePenaltyFloor = 1024 * 1024 // 1MB

func sizePenalty(sizeBytes int64) float64 {
	if sizeBytes <= 0 {
		return 1.0
	}
	if sizeBytes >= sizePenaltyFloor {
		return 0.5
	}
	return 1.0 - 0.5*(float64(sizeBytes)/float64(sizePenaltyFloor))
}
