package searcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
	"github.com/coderadar-dev/coderadar/internal/fileindexer"
	"github.com/coderadar-dev/coderadar/internal/indexstore"
	"github.com/coderadar-dev/coderadar/internal/querybuilder"
)

func newTestStore(t *testing.T) (*indexstore.Store, string) {
	t.Helper()
	root := t.TempDir()
	cfg := cfgpkg.Default()
	cfg.Index.CommitInterval = time.Hour

	store, err := indexstore.Open(filepath.Join(t.TempDir(), "idx"), cfg.Index)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestSearch_StandardMode_FindsFileAndLine(t *testing.T) {
	store, root := newTestStore(t)
	cfg := cfgpkg.Default()

	writeFile(t, root, "user_service.go", "package main\n\ntype UserService struct{}\n\nfunc (s *UserService) GetCurrentUserId() string {\n\treturn \"\"\n}\n")
	writeFile(t, root, "other.go", "package main\n\nfunc unrelated() {}\n")

	ix := fileindexer.New(store, cfg, root)
	_, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Commit())

	res, err := Search(context.Background(), store, querybuilder.Request{
		Text: "UserService",
		Mode: querybuilder.ModeStandard,
	}, 10, true, cfg.Search)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)

	var found bool
	for _, h := range res.Hits {
		if h.RelativePath == "user_service.go" {
			found = true
			require.Greater(t, h.Line, 0)
			require.Contains(t, h.LineText, "UserService")
		}
	}
	require.True(t, found)
}

func TestSearch_Literal_MatchesOperatorSubstring(t *testing.T) {
	store, root := newTestStore(t)
	cfg := cfgpkg.Default()

	writeFile(t, root, "main.cpp", "#include <iostream>\n\nint main() {\n\tstd::cout << \"hi\";\n}\n")

	ix := fileindexer.New(store, cfg, root)
	_, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Commit())

	res, err := Search(context.Background(), store, querybuilder.Request{
		Text: "std::cout",
		Mode: querybuilder.ModeLiteral,
	}, 10, false, cfg.Search)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	require.Contains(t, res.Hits[0].LineText, "std::cout")
}

func TestSearch_RanksFilenameMatchHigher(t *testing.T) {
	store, root := newTestStore(t)
	cfg := cfgpkg.Default()

	writeFile(t, root, "widget.go", "package main\n\n// widget mentions widget again for term weight\nfunc widget() {}\n")
	writeFile(t, root, "widget_service.go", "package main\n\nfunc run() {}\n")

	ix := fileindexer.New(store, cfg, root)
	_, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Commit())

	res, err := Search(context.Background(), store, querybuilder.Request{
		Text: "widget",
		Mode: querybuilder.ModeStandard,
	}, 10, false, cfg.Search)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	require.Equal(t, "widget_service.go", res.Hits[0].RelativePath)
}

func TestSearchLines_EnumeratesEveryMatchingLine(t *testing.T) {
	store, root := newTestStore(t)
	cfg := cfgpkg.Default()

	writeFile(t, root, "many.go", "package main\n\n// token here\nfunc a() {}\n\n// token again\nfunc b() {}\n")

	ix := fileindexer.New(store, cfg, root)
	_, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Commit())

	res, err := SearchLines(context.Background(), store, querybuilder.Request{
		Text: "token",
		Mode: querybuilder.ModeStandard,
	}, 10, cfg.Search)
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	require.Less(t, res.Hits[0].Line, res.Hits[1].Line)
}

func TestSearch_Fuzzy_MatchesTypoAndFiltersUnrelated(t *testing.T) {
	store, root := newTestStore(t)
	cfg := cfgpkg.Default()

	writeFile(t, root, "svc.go", "package main\n\nfunc servise() {}\n")
	writeFile(t, root, "unrelated.go", "package main\n\nfunc totallyDifferentName() {}\n")

	ix := fileindexer.New(store, cfg, root)
	_, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Commit())

	res, err := Search(context.Background(), store, querybuilder.Request{
		Text: "service",
		Mode: querybuilder.ModeFuzzy,
	}, 10, false, cfg.Search)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	require.Equal(t, "svc.go", res.Hits[0].RelativePath)
}

func TestSearch_Phrase_MatchesAdjacentCamelCaseSubtokens(t *testing.T) {
	store, root := newTestStore(t)
	cfg := cfgpkg.Default()

	writeFile(t, root, "user_service.go", "package main\n\nfunc GetCurrentUserId() string {\n\treturn \"\"\n}\n")
	writeFile(t, root, "unrelated.go", "package main\n\nfunc totallyDifferentName() {}\n")

	ix := fileindexer.New(store, cfg, root)
	_, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Commit())

	res, err := Search(context.Background(), store, querybuilder.Request{
		Text: "Current User",
		Mode: querybuilder.ModePhrase,
	}, 10, false, cfg.Search)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits, "phrase query over adjacent camelCase subtokens must hit")
	require.Equal(t, "user_service.go", res.Hits[0].RelativePath)
}

func TestSearch_DeadlineExceeded_ReturnsTruncated(t *testing.T) {
	store, root := newTestStore(t)
	cfg := cfgpkg.Default()

	writeFile(t, root, "a.go", "package main\n\nfunc a() {}\n")

	ix := fileindexer.New(store, cfg, root)
	_, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Commit())

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	time.Sleep(time.Millisecond)

	res, err := Search(ctx, store, querybuilder.Request{
		Text: "func",
		Mode: querybuilder.ModeStandard,
	}, 10, false, cfg.Search)
	require.NoError(t, err)
	require.True(t, res.Truncated)
}
