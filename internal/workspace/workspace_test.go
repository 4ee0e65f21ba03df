package workspace

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
	coderrors "github.com/coderadar-dev/coderadar/internal/errors"
)

func testConfig(t *testing.T) *cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.BasePath = t.TempDir()
	cfg.Index.CommitInterval = time.Hour
	cfg.Workspace.MaxOpen = 2
	cfg.Workspace.IdleTimeout = time.Hour
	return cfg
}

func TestOpen_ReturnsSameStoreOnSecondCall(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	t.Cleanup(func() { m.Close() })

	ws := t.TempDir()
	s1, err := m.Open(ws)
	require.NoError(t, err)
	s2, err := m.Open(ws)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, m.OpenCount())
}

func TestOpen_ConcurrentCallsShareOneStore(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	t.Cleanup(func() { m.Close() })

	ws := t.TempDir()
	var wg sync.WaitGroup
	stores := make([]interface{}, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Open(ws)
			require.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(stores); i++ {
		assert.Same(t, stores[0], stores[i])
	}
	assert.Equal(t, 1, m.OpenCount())
}

func TestOpen_EvictsLRUWhenOverCapacity(t *testing.T) {
	cfg := testConfig(t) // MaxOpen = 2
	m := New(cfg)
	t.Cleanup(func() { m.Close() })

	ws1, ws2, ws3 := t.TempDir(), t.TempDir(), t.TempDir()
	_, err := m.Open(ws1)
	require.NoError(t, err)
	_, err = m.Open(ws2)
	require.NoError(t, err)
	assert.Equal(t, 2, m.OpenCount())

	_, err = m.Open(ws3)
	require.NoError(t, err)
	assert.Equal(t, 2, m.OpenCount())
}

func TestOpen_RefusesProtectedWorkspace(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	t.Cleanup(func() { m.Close() })

	ws := filepath.Join(t.TempDir(), "project-memory")
	require.NoError(t, os.MkdirAll(ws, 0o755))

	_, err := m.Open(ws)
	require.Error(t, err)
}

func TestOpen_PersistsMetadata(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	t.Cleanup(func() { m.Close() })

	ws := t.TempDir()
	_, err := m.Open(ws)
	require.NoError(t, err)

	indexPath, err := m.resolver.IndexPath(ws)
	require.NoError(t, err)

	meta, ok := m.readMetadata(indexPath)
	require.True(t, ok)
	assert.NotEmpty(t, meta.OriginalPath)
	assert.False(t, meta.CreatedAt.IsZero())
}

func TestEvict_ClosesAndDropsWorkspace(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	t.Cleanup(func() { m.Close() })

	ws := t.TempDir()
	_, err := m.Open(ws)
	require.NoError(t, err)
	require.Equal(t, 1, m.OpenCount())

	require.NoError(t, m.Evict(ws))
	assert.Equal(t, 0, m.OpenCount())

	_, err = m.Open(ws)
	require.NoError(t, err)
	assert.Equal(t, 1, m.OpenCount())
}

func TestEvict_NeverIndexedWorkspaceReturnsWorkspaceUnknown(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)
	t.Cleanup(func() { m.Close() })

	ws := t.TempDir() // never opened, no index directory on disk

	err := m.Evict(ws)
	require.Error(t, err)
	kind, ok := coderrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, coderrors.KindWorkspaceUnknown, kind)
}
