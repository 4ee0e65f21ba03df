package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
)

func testConfig() *cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.Watch.DebounceTime = 50 * time.Millisecond
	cfg.Watch.MaxBatch = 50
	return cfg
}

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) dispatch(batch []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, batch...)
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestWatcher_DetectsCreateAndWrite(t *testing.T) {
	root := t.TempDir()
	c := &collector{}
	w, err := New(testConfig(), root, c.dispatch)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })

	p := filepath.Join(root, "new.go")
	require.NoError(t, os.WriteFile(p, []byte("package main\n"), 0o644))

	require.Eventually(t, func() bool {
		for _, e := range c.snapshot() {
			if e.Path == p {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_CoalescesRepeatedWrites(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "busy.go")
	require.NoError(t, os.WriteFile(p, []byte("package main\n"), 0o644))

	c := &collector{}
	w, err := New(testConfig(), root, c.dispatch)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(p, []byte("package main\n\n// edit\n"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)

	var count int
	for _, e := range c.snapshot() {
		if e.Path == p {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestWatcher_CreateThenDeleteCancels(t *testing.T) {
	root := t.TempDir()
	c := &collector{}
	w, err := New(testConfig(), root, c.dispatch)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })

	p := filepath.Join(root, "transient.go")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	require.NoError(t, os.Remove(p))

	time.Sleep(300 * time.Millisecond)

	for _, e := range c.snapshot() {
		assert.NotEqual(t, p, e.Path, "created+deleted pair should cancel, found %v", e)
	}
}

func TestWatcher_SkipsExcludedDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))

	c := &collector{}
	w, err := New(testConfig(), root, c.dispatch)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })

	p := filepath.Join(root, "node_modules", "ignored.js")
	require.NoError(t, os.WriteFile(p, []byte("console.log(1)"), 0o644))

	time.Sleep(300 * time.Millisecond)

	for _, e := range c.snapshot() {
		assert.NotEqual(t, p, e.Path)
	}
}

func TestWatcher_DeletedFileDispatchesDeletedKind(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "gone.go")
	require.NoError(t, os.WriteFile(p, []byte("package main\n"), 0o644))

	c := &collector{}
	w, err := New(testConfig(), root, c.dispatch)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Remove(p))

	require.Eventually(t, func() bool {
		for _, e := range c.snapshot() {
			if e.Path == p && e.Kind == Deleted {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}
