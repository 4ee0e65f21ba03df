package indexstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
)

func testConfig() cfgpkg.Index {
	cfg := cfgpkg.Default().Index
	cfg.CommitInterval = time.Hour // keep the background ticker out of the way
	return cfg
}

func TestOpen_CreatesAndReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx")

	s, err := Open(path, testConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path, testConfig())
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestAddOrReplace_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "idx"), testConfig())
	require.NoError(t, err)
	defer s.Close()

	doc := &Document{
		Path:         "/ws/a.go",
		RelativePath: "a.go",
		Filename:     "a.go",
		Content:      "func main() {}",
		ContentHash:  "abc123",
	}
	require.NoError(t, s.AddOrReplace("a.go", doc))
	require.NoError(t, s.Commit())

	n, err := s.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	hash, ok, err := s.ContentHash("a.go")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc123", hash)
}

func TestDeleteByPath(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "idx"), testConfig())
	require.NoError(t, err)
	defer s.Close()

	doc := &Document{RelativePath: "a.go", Content: "package main"}
	require.NoError(t, s.AddOrReplace("a.go", doc))
	require.NoError(t, s.Commit())

	require.NoError(t, s.DeleteByPath("a.go"))
	require.NoError(t, s.Commit())

	n, err := s.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)
}

func TestClear_DropsDocumentsButKeepsWriterLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx")
	s, err := Open(path, testConfig())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AddOrReplace("a.go", &Document{RelativePath: "a.go", Content: "package main"}))
	require.NoError(t, s.Commit())
	n, err := s.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	require.NoError(t, s.Clear())

	n, err = s.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)

	_, err = os.Stat(filepath.Join(path, lockFileName))
	require.NoError(t, err, "Clear must not remove the writer lock it holds")

	require.NoError(t, s.AddOrReplace("b.go", &Document{RelativePath: "b.go", Content: "package main"}))
	require.NoError(t, s.Commit())
	n, err = s.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}

func TestOpen_StaleLockReclaimed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx")

	cfg := testConfig()
	cfg.StaleLockTimeout = 10 * time.Millisecond

	s, err := Open(path, cfg)
	require.NoError(t, err)
	s.lockAcquired = false // skip the lock removal Close would otherwise do
	require.NoError(t, s.Close())

	// Simulate a crashed writer: the index closed cleanly, but its lock file
	// is still on disk, backdated past the stale threshold.
	lockPath := filepath.Join(path, lockFileName)
	require.NoError(t, os.WriteFile(lockPath, []byte("99999\n1\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	s2, err := Open(path, cfg)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}
