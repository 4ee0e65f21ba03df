package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilenameMatchBoost(t *testing.T) {
	assert.Equal(t, 1.5, filenameMatchBoost("UserService", "UserService.cs"))
	assert.Equal(t, 1.5, filenameMatchBoost("userservice", "UserService.cs"))
	assert.Equal(t, 1.0, filenameMatchBoost("UserService", "Other.cs"))
}

func TestRecencyFactor_ClampedRange(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.0, recencyFactor(now, now), 0.001)
	assert.Equal(t, 0.5, recencyFactor(now.Add(-365*24*time.Hour), now))
	assert.LessOrEqual(t, recencyFactor(now, now.Add(-time.Hour)), 1.5)
}

func TestSizePenalty(t *testing.T) {
	assert.Equal(t, 1.0, sizePenalty(0))
	assert.Equal(t, 0.5, sizePenalty(2*1024*1024))
	assert.InDelta(t, 0.75, sizePenalty(512*1024), 0.01)
}

func TestFactors_Final(t *testing.T) {
	f := Factors{TextScore: 2.0, FilenameBoost: 1.5, RecencyFactor: 1.0, SizePenalty: 1.0}
	assert.Equal(t, 3.0, f.Final())
}
