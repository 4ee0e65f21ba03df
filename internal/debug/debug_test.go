package debug

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnable_ForcesEnabledRegardlessOfEnvOrBuildFlag(t *testing.T) {
	t.Cleanup(func() {
		forceEnabled = false
		output = nil
	})

	require.False(t, Enabled())

	Enable()
	assert.True(t, Enabled())
}

func TestPrintf_WritesOnlyWhenEnabledAndOutputSet(t *testing.T) {
	t.Cleanup(func() {
		forceEnabled = false
		SetOutput(nil)
	})

	var buf bytes.Buffer
	SetOutput(&buf)
	Printf("unseen %d", 1)
	assert.Empty(t, buf.String(), "Printf must stay silent until Enable is called")

	Enable()
	Printf("seen %d", 2)
	assert.Contains(t, buf.String(), "seen 2")
}
