package querybuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
)

func defaultSearchConfig() cfgpkg.Search {
	return cfgpkg.Default().Search
}

func TestBuild_Literal_PreservesOperatorSubstring(t *testing.T) {
	b, err := Build(Request{Text: ": IUserService", Mode: ModeLiteral}, defaultSearchConfig())
	require.NoError(t, err)
	require.NotNil(t, b.Query)
	assert.Equal(t, []string{": IUserService"}, b.HighlightTerms)
}

func TestBuild_Code_AddsSymbolSubtokens(t *testing.T) {
	b, err := Build(Request{Text: "GetCurrentUserId", Mode: ModeCode}, defaultSearchConfig())
	require.NoError(t, err)
	assert.Contains(t, b.HighlightTerms, "Current")
	assert.Contains(t, b.HighlightTerms, "User")
}

func TestBuild_Standard_ReturnsDisjunction(t *testing.T) {
	b, err := Build(Request{Text: "UserService", Mode: ModeStandard}, defaultSearchConfig())
	require.NoError(t, err)
	assert.NotNil(t, b.Query)
	assert.Equal(t, []string{"UserService"}, b.HighlightTerms)
}

func TestBuild_Wildcard_FlagsLeadingWildcard(t *testing.T) {
	b, err := Build(Request{Text: "*Service", Mode: ModeWildcard}, defaultSearchConfig())
	require.NoError(t, err)
	require.NotEmpty(t, b.Diagnostics)
}

func TestBuild_Regex_AlwaysDiagnoses(t *testing.T) {
	b, err := Build(Request{Text: "User.*Service", Mode: ModeRegex}, defaultSearchConfig())
	require.NoError(t, err)
	require.Len(t, b.Diagnostics, 1)
}

func TestBuild_Fuzzy_CapsDistance(t *testing.T) {
	cfg := defaultSearchConfig()
	cfg.FuzzyMaxDistance = 9
	b, err := Build(Request{Text: "servise", Mode: ModeFuzzy}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, b.FuzzyMaxDistance)
}

func TestBuild_Phrase(t *testing.T) {
	b, err := Build(Request{Text: "new UserService", Mode: ModePhrase}, defaultSearchConfig())
	require.NoError(t, err)
	assert.NotNil(t, b.Query)
}

func TestBuild_EmptyText_Errors(t *testing.T) {
	_, err := Build(Request{Text: "   ", Mode: ModeStandard}, defaultSearchConfig())
	assert.Error(t, err)
}

func TestBuild_UnknownMode_Errors(t *testing.T) {
	_, err := Build(Request{Text: "x", Mode: "bogus"}, defaultSearchConfig())
	assert.Error(t, err)
}
