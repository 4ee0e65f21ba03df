package fileindexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
	"github.com/coderadar-dev/coderadar/internal/indexstore"
)

func newTestIndexer(t *testing.T) (*Indexer, *indexstore.Store, string) {
	t.Helper()
	root := t.TempDir()
	cfg := cfgpkg.Default()
	cfg.Index.CommitInterval = time.Hour

	store, err := indexstore.Open(filepath.Join(t.TempDir(), "idx"), cfg.Index)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(store, cfg, root), store, root
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestIndexWorkspace_IndexesAndExcludes(t *testing.T) {
	ix, store, root := newTestIndexer(t)

	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, root, "node_modules/pkg/index.js", "console.log('skip')")
	writeFile(t, root, "vendor/lib.go", "package lib")

	stats, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.FilesIndexed)
	require.Empty(t, stats.Errors)

	n, err := store.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}

func TestIndexWorkspace_SkipsBinary(t *testing.T) {
	ix, store, root := newTestIndexer(t)
	writeFile(t, root, "photo.png", "\x89PNG\x00\x00\x00binarydata")

	stats, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.FilesIndexed)
	require.Equal(t, 1, stats.FilesSkipped)

	n, err := store.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)
}

func TestIndexWorkspace_SkipsUnchangedContent(t *testing.T) {
	ix, _, root := newTestIndexer(t)
	writeFile(t, root, "a.go", "package a")

	stats, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.FilesIndexed)

	stats2, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats2.FilesIndexed)
	require.Equal(t, 1, stats2.FilesSkipped)
}

func TestRemoveFile(t *testing.T) {
	ix, store, root := newTestIndexer(t)
	writeFile(t, root, "a.go", "package a")

	_, err := ix.IndexWorkspace(context.Background())
	require.NoError(t, err)

	require.NoError(t, ix.RemoveFile(filepath.Join(root, "a.go")))

	n, err := store.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)
}
