// Package workspace implements WorkspaceManager (spec.md §4.9): a bounded,
// LRU-evicted cache of one open *indexstore.Store per workspace, with lazy
// lastAccessed bookkeeping, idle-timeout eviction, protected-path refusal,
// and a singleflight-guarded open so concurrent callers racing to open the
// same cold workspace end up sharing exactly one writer.
package workspace

import (
	"container/list"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
	"github.com/coderadar-dev/coderadar/internal/debug"
	coderrors "github.com/coderadar-dev/coderadar/internal/errors"
	"github.com/coderadar-dev/coderadar/internal/indexstore"
	"github.com/coderadar-dev/coderadar/internal/pathresolver"
)

// Metadata is the JSON record persisted alongside each workspace's index
// (spec.md §3, "Workspace metadata").
type Metadata struct {
	OriginalPath string    `json:"originalPath"`
	HashPath     string    `json:"hashPath"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// entry is one cached workspace's bookkeeping.
type entry struct {
	originalPath string
	indexPath    string
	store        *indexstore.Store
	lastAccessed time.Time
	lastTouch    time.Time // last time lastAccessed was persisted to disk
	elem         *list.Element
}

// Manager is the bounded cache of open workspaces.
type Manager struct {
	cfg      *cfgpkg.Config
	resolver *pathresolver.Resolver

	mu      sync.Mutex
	entries map[string]*entry // keyed by canonical index path
	order   *list.List        // front = most recently used

	metaMu singleflight.Group // per-path metadata write serialization
	openMu singleflight.Group // per-path open serialization

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Manager bound to cfg and starts its idle-eviction sweeper.
func New(cfg *cfgpkg.Config) *Manager {
	m := &Manager{
		cfg:      cfg,
		resolver: pathresolver.New(cfg),
		entries:  make(map[string]*entry),
		order:    list.New(),
		stopCh:   make(chan struct{}),
	}
	m.wg.Add(1)
	go m.evictionLoop()
	return m
}

// Close evicts every open workspace (committing and closing each writer)
// and stops the eviction sweeper.
func (m *Manager) Close() error {
	close(m.stopCh)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for path, e := range m.entries {
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.entries, path)
	}
	m.order.Init()
	return firstErr
}

// Open resolves workspace to a canonical index directory and returns its
// *indexstore.Store, opening it (and evicting the LRU victim if the cache
// is full) if it is not already cached. Concurrent Open calls for the same
// workspace share exactly one underlying Store (spec.md §4.9, "concurrent
// open ... must yield exactly one writer").
func (m *Manager) Open(workspace string) (*indexstore.Store, error) {
	canon, err := pathresolver.Canonicalize(workspace)
	if err != nil {
		return nil, err
	}
	indexPath, err := m.resolver.IndexPath(canon)
	if err != nil {
		return nil, err
	}
	if pathresolver.IsProtected(filepath.Base(indexPath)) {
		return nil, coderrors.ProtectedPath("workspace.open", canon)
	}

	if store, ok := m.touch(indexPath); ok {
		return store, nil
	}

	result, err, _ := m.openMu.Do(indexPath, func() (interface{}, error) {
		if store, ok := m.touch(indexPath); ok {
			return store, nil
		}
		return m.openCold(canon, indexPath)
	})
	if err != nil {
		return nil, err
	}
	return result.(*indexstore.Store), nil
}

// touch returns the cached store for indexPath (if any), marking it most
// recently used and lazily persisting lastAccessed.
func (m *Manager) touch(indexPath string) (*indexstore.Store, bool) {
	m.mu.Lock()
	e, ok := m.entries[indexPath]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	now := time.Now()
	e.lastAccessed = now
	m.order.MoveToFront(e.elem)
	needsPersist := now.Sub(e.lastTouch) >= time.Minute
	if needsPersist {
		e.lastTouch = now
	}
	store := e.store
	originalPath := e.originalPath
	m.mu.Unlock()

	if needsPersist {
		m.persistMetadata(indexPath, originalPath, now)
	}
	return store, true
}

// openCold opens a workspace that was not already cached, evicting the LRU
// entry first if the cache is at capacity.
func (m *Manager) openCold(canon, indexPath string) (*indexstore.Store, error) {
	m.mu.Lock()
	maxOpen := m.cfg.Workspace.MaxOpen
	if maxOpen <= 0 {
		maxOpen = 5
	}
	var victim *entry
	if len(m.entries) >= maxOpen {
		back := m.order.Back()
		if back != nil {
			victim = back.Value.(*entry)
			delete(m.entries, victim.indexPath)
			m.order.Remove(back)
		}
	}
	m.mu.Unlock()

	if victim != nil {
		debug.LogWorkspace("evicting %s to make room for %s", victim.originalPath, canon)
		victim.store.Close()
	}

	store, err := indexstore.Open(indexPath, m.cfg.Index)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	created := now
	if existing, ok := m.readMetadata(indexPath); ok {
		created = existing.CreatedAt
	}
	m.writeMetadata(indexPath, Metadata{
		OriginalPath: canon,
		HashPath:     indexPath,
		CreatedAt:    created,
		LastAccessed: now,
	})

	e := &entry{
		originalPath: canon,
		indexPath:    indexPath,
		store:        store,
		lastAccessed: now,
		lastTouch:    now,
	}

	m.mu.Lock()
	e.elem = m.order.PushFront(e)
	m.entries[indexPath] = e
	m.mu.Unlock()

	debug.LogWorkspace("opened workspace %s at %s", canon, indexPath)
	return store, nil
}

// Evict closes and drops workspace from the cache, committing first. It is
// a no-op if the workspace is not currently open but has an index directory
// on disk; if it has neither a cached entry nor an index directory (it was
// never indexed), Evict returns WorkspaceUnknown.
func (m *Manager) Evict(workspace string) error {
	canon, err := pathresolver.Canonicalize(workspace)
	if err != nil {
		return err
	}
	indexPath, err := m.resolver.IndexPath(canon)
	if err != nil {
		return err
	}

	m.mu.Lock()
	e, ok := m.entries[indexPath]
	if ok {
		delete(m.entries, indexPath)
		m.order.Remove(e.elem)
	}
	m.mu.Unlock()

	if !ok {
		if _, statErr := os.Stat(indexPath); os.IsNotExist(statErr) {
			return coderrors.WorkspaceUnknown("workspace.evict", canon)
		}
		return nil
	}
	return e.store.Close()
}

// evictionLoop periodically closes workspaces idle longer than
// cfg.Workspace.IdleTimeout.
func (m *Manager) evictionLoop() {
	defer m.wg.Done()
	interval := m.cfg.Workspace.IdleTimeout / 4
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweepIdle()
		}
	}
}

func (m *Manager) sweepIdle() {
	timeout := m.cfg.Workspace.IdleTimeout
	if timeout <= 0 {
		return
	}
	now := time.Now()

	var idle []*entry
	m.mu.Lock()
	for path, e := range m.entries {
		if now.Sub(e.lastAccessed) >= timeout {
			idle = append(idle, e)
			delete(m.entries, path)
			m.order.Remove(e.elem)
		}
	}
	m.mu.Unlock()

	for _, e := range idle {
		debug.LogWorkspace("idle-evicting %s after %s", e.originalPath, now.Sub(e.lastAccessed))
		if err := e.store.Close(); err != nil {
			debug.LogWorkspace("error closing idle workspace %s: %v", e.originalPath, err)
		}
	}
}

// persistMetadata updates lastAccessed on disk without blocking callers
// behind each other for the same path (singleflight-deduplicated).
func (m *Manager) persistMetadata(indexPath, originalPath string, accessed time.Time) {
	m.metaMu.Do(indexPath, func() (interface{}, error) {
		meta, ok := m.readMetadata(indexPath)
		if !ok {
			meta = Metadata{OriginalPath: originalPath, HashPath: indexPath, CreatedAt: accessed}
		}
		meta.LastAccessed = accessed
		m.writeMetadata(indexPath, meta)
		return nil, nil
	})
}

func (m *Manager) readMetadata(indexPath string) (Metadata, bool) {
	raw, err := os.ReadFile(filepath.Join(indexPath, "workspace_metadata.json"))
	if err != nil {
		return Metadata{}, false
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, false
	}
	return meta, true
}

// writeMetadata persists meta atomically: write to a temp file in the same
// directory, then rename over the target (spec.md §5, "temp-file-then-
// rename atomic").
func (m *Manager) writeMetadata(indexPath string, meta Metadata) error {
	if err := os.MkdirAll(indexPath, 0o755); err != nil {
		return coderrors.PersistenceFailure("workspace.write_metadata", indexPath, err)
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return coderrors.PersistenceFailure("workspace.write_metadata", indexPath, err)
	}

	target := filepath.Join(indexPath, "workspace_metadata.json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return coderrors.PersistenceFailure("workspace.write_metadata", indexPath, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return coderrors.PersistenceFailure("workspace.write_metadata", indexPath, err)
	}
	return nil
}

// OpenCount reports how many workspaces are currently cached, for tests and
// diagnostics.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
