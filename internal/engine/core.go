// Package engine wires WorkspaceManager, FileIndexer, FileWatcher, and
// Searcher into the five operations coderadar exposes to its host (spec.md
// §6): IndexWorkspace, Search, SearchLines, NotifyFileChange, and
// CloseWorkspace. Core is constructed once from a read-only config
// snapshot; nothing under internal/ reaches for global state.
package engine

import (
	"context"
	"sync"
	"time"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
	"github.com/coderadar-dev/coderadar/internal/debug"
	"github.com/coderadar-dev/coderadar/internal/fileindexer"
	"github.com/coderadar-dev/coderadar/internal/indexstore"
	"github.com/coderadar-dev/coderadar/internal/pathresolver"
	"github.com/coderadar-dev/coderadar/internal/querybuilder"
	"github.com/coderadar-dev/coderadar/internal/searcher"
	"github.com/coderadar-dev/coderadar/internal/watcher"
	"github.com/coderadar-dev/coderadar/internal/workspace"
)

// Core is the in-process entry point a host (CLI, RPC surface, embedding
// application) drives. It holds no state of its own beyond its
// collaborators: WorkspaceManager owns every open IndexStore.
type Core struct {
	cfg *cfgpkg.Config
	ws  *workspace.Manager

	mu       sync.Mutex
	watchers map[string]*watcher.Watcher // keyed by canonical workspace path
}

// IndexOptions configures IndexWorkspace.
type IndexOptions struct {
	ForceRebuild bool
}

// IndexResult is IndexWorkspace's return value.
type IndexResult struct {
	WorkspaceID string
	Stats       fileindexer.Stats
	Duration    time.Duration
}

// New builds a Core bound to cfg.
func New(cfg *cfgpkg.Config) *Core {
	return &Core{
		cfg:      cfg,
		ws:       workspace.New(cfg),
		watchers: make(map[string]*watcher.Watcher),
	}
}

// Close shuts down every open workspace and watcher.
func (c *Core) Close() error {
	c.mu.Lock()
	for path, w := range c.watchers {
		w.Stop()
		delete(c.watchers, path)
	}
	c.mu.Unlock()
	return c.ws.Close()
}

// IndexWorkspace opens or creates the index for path and performs a full
// walk, starting the background watcher if configured (spec.md §6).
func (c *Core) IndexWorkspace(ctx context.Context, path string, opts IndexOptions) (IndexResult, error) {
	start := time.Now()

	canon, err := pathresolver.Canonicalize(path)
	if err != nil {
		return IndexResult{}, err
	}

	store, err := c.ws.Open(canon)
	if err != nil {
		return IndexResult{}, err
	}

	if opts.ForceRebuild {
		if err := store.Clear(); err != nil {
			return IndexResult{}, err
		}
	}

	ix := fileindexer.New(store, c.cfg, canon)
	stats, err := ix.IndexWorkspace(ctx)
	if err != nil {
		return IndexResult{}, err
	}
	if err := store.Commit(); err != nil {
		return IndexResult{}, err
	}

	if c.cfg.Watch.Enabled {
		c.ensureWatcher(canon, store)
	}

	return IndexResult{
		WorkspaceID: pathresolver.ComputeWorkspaceHash(canon),
		Stats:       stats,
		Duration:    time.Since(start),
	}, nil
}

// ensureWatcher starts a FileWatcher for canon if one is not already
// running, dispatching coalesced batches to the workspace's FileIndexer.
func (c *Core) ensureWatcher(canon string, store *indexstore.Store) {
	c.mu.Lock()
	if _, ok := c.watchers[canon]; ok {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ix := fileindexer.New(store, c.cfg, canon)
	w, err := watcher.New(c.cfg, canon, func(batch []watcher.Event) {
		c.handleWatchBatch(ix, store, batch)
	})
	if err != nil {
		debug.LogWatch("failed to create watcher for %s: %v", canon, err)
		return
	}
	if err := w.Start(); err != nil {
		debug.LogWatch("failed to start watcher for %s: %v", canon, err)
		return
	}

	c.mu.Lock()
	c.watchers[canon] = w
	c.mu.Unlock()
}

// handleWatchBatch applies one coalesced batch of filesystem events to a
// workspace's index: deletions first, then (re)indexing of the rest, per
// spec.md §5's "deletes are applied before adds for the same path" rule.
func (c *Core) handleWatchBatch(ix *fileindexer.Indexer, store *indexstore.Store, batch []watcher.Event) {
	var toIndex []string
	for _, ev := range batch {
		if ev.Kind == watcher.Deleted {
			if err := ix.RemoveFile(ev.Path); err != nil {
				debug.LogWatch("remove %s failed: %v", ev.Path, err)
			}
			continue
		}
		toIndex = append(toIndex, ev.Path)
	}

	if len(toIndex) > 0 {
		if _, err := ix.IndexBatch(context.Background(), toIndex); err != nil {
			debug.LogWatch("batch index failed: %v", err)
		}
	}
	if err := store.Commit(); err != nil {
		debug.LogWatch("commit after watch batch failed: %v", err)
	}
}

// Search performs a document-level search in workspace (spec.md §4.8, §6).
func (c *Core) Search(ctx context.Context, path string, req querybuilder.Request, limit int, includeContext bool) (searcher.Result, error) {
	canon, err := pathresolver.Canonicalize(path)
	if err != nil {
		return searcher.Result{}, err
	}
	store, err := c.ws.Open(canon)
	if err != nil {
		return searcher.Result{}, err
	}
	return searcher.Search(ctx, store, req, limit, includeContext, c.cfg.Search)
}

// SearchLines performs a line-level (grep-like) search in workspace.
func (c *Core) SearchLines(ctx context.Context, path string, req querybuilder.Request, limit int) (searcher.LineResult, error) {
	canon, err := pathresolver.Canonicalize(path)
	if err != nil {
		return searcher.LineResult{}, err
	}
	store, err := c.ws.Open(canon)
	if err != nil {
		return searcher.LineResult{}, err
	}
	return searcher.SearchLines(ctx, store, req, limit, c.cfg.Search)
}

// NotifyFileChange lets a host push an out-of-band change notification,
// coexisting with the background watcher (spec.md §6).
func (c *Core) NotifyFileChange(ctx context.Context, workspacePath, changedPath string, kind watcher.Kind) error {
	canon, err := pathresolver.Canonicalize(workspacePath)
	if err != nil {
		return err
	}
	store, err := c.ws.Open(canon)
	if err != nil {
		return err
	}
	ix := fileindexer.New(store, c.cfg, canon)

	if kind == watcher.Deleted {
		return ix.RemoveFile(changedPath)
	}
	_, err = ix.IndexBatch(ctx, []string{changedPath})
	return err
}

// CloseWorkspace commits and releases workspace's writer and stops its
// watcher, if any.
func (c *Core) CloseWorkspace(path string) error {
	canon, err := pathresolver.Canonicalize(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if w, ok := c.watchers[canon]; ok {
		w.Stop()
		delete(c.watchers, canon)
	}
	c.mu.Unlock()

	return c.ws.Evict(canon)
}
