// Package watcher implements FileWatcher (spec.md §4.10): recursive
// filesystem subscription for one workspace root, deny-listed subtree
// filtering, per-path debouncing, and batched dispatch. The watcher never
// indexes anything itself — it hands resolved events to a dispatch
// callback (internal/engine wires this to internal/fileindexer), which may
// still reject a path via include rules.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
	"github.com/coderadar-dev/coderadar/internal/debug"
	"github.com/coderadar-dev/coderadar/internal/pathresolver"
)

// Kind is the resolved, coalesced event type FileWatcher dispatches.
type Kind int

const (
	Created Kind = iota
	Modified
	Deleted
)

// Event is one coalesced, debounced filesystem change.
type Event struct {
	Path string
	Kind Kind
}

// pendingEvent tracks one path's in-flight event while its debounce window
// is open.
type pendingEvent struct {
	kind      Kind
	sawCreate bool
	sawDelete bool
	timer     *time.Timer
}

// Watcher watches one workspace root recursively and dispatches coalesced,
// batched events to dispatch.
type Watcher struct {
	root     string
	rules    cfgpkg.Rules
	debounce time.Duration
	maxBatch int
	dispatch func([]Event)

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pendingEvent
	batch   []Event
	flusher *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Watcher for root. It does not start watching until Start is
// called.
func New(cfg *cfgpkg.Config, root string, dispatch func([]Event)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := cfg.Watch.DebounceTime
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	maxBatch := cfg.Watch.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 50
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		root:     root,
		rules:    cfg.Rules,
		debounce: debounce,
		maxBatch: maxBatch,
		dispatch: dispatch,
		fsw:      fsw,
		pending:  make(map[string]*pendingEvent),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start adds recursive watches under root and begins processing events.
func (w *Watcher) Start() error {
	if err := w.addWatches(w.root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents()
	debug.LogWatch("started watching %s", w.root)
	return nil
}

// Stop cancels event processing, flushes nothing (in-flight debounced
// events at shutdown are acceptable to lose since the workspace is closing
// too), and releases the fsnotify watcher.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	debug.LogWatch("stopped watching %s", w.root)
	return err
}

func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if path != root && w.shouldIgnoreDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			debug.LogWatch("failed to watch %s: %v", path, err)
		}
		return nil
	})
}

// shouldIgnoreDir reports whether a directory subtree is deny-listed
// (spec.md §4.10, "filters out deny-listed directory subtrees").
func (w *Watcher) shouldIgnoreDir(path string) bool {
	base := filepath.Base(path)
	for _, excl := range w.rules.ExcludeDirs {
		if base == excl {
			return true
		}
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	return pathresolver.MatchesAny(w.rules.ExcludeGlobs, rel)
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.LogWatch("fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if ev.Op&fsnotify.Create != 0 && !w.shouldIgnoreDir(path) {
			if err := w.fsw.Add(path); err != nil {
				debug.LogWatch("failed to watch new directory %s: %v", path, err)
			}
		}
		return
	}

	if w.shouldIgnoreDir(filepath.Dir(path)) {
		return
	}

	var kind Kind
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = Created
	case ev.Op&fsnotify.Write != 0:
		kind = Modified
	case ev.Op&fsnotify.Rename != 0:
		// A rename delivers one event on the old path only; the new path
		// (if still inside the watched tree) arrives as its own, separate
		// Create event. Treating Rename as Deleted here is what makes a
		// move decompose into deleted(old) + created(new) (spec.md §4.10).
		kind = Deleted
	case ev.Op&fsnotify.Remove != 0:
		kind = Deleted
	default:
		return
	}

	w.schedulePath(path, kind)
}

// schedulePath folds kind into path's pending event, applying the
// coalescing rules spec.md §4.10 specifies: repeated writes settle to one
// Modified (a rename arrives here as Deleted); a Created+Deleted pair (in either order) cancels
// entirely; each path gets its own debounce window, reset on every new
// event for that path.
func (w *Watcher) schedulePath(path string, kind Kind) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[path]
	if !ok {
		p = &pendingEvent{kind: kind}
		w.pending[path] = p
	}

	switch kind {
	case Created:
		if p.sawDelete {
			delete(w.pending, path)
			if p.timer != nil {
				p.timer.Stop()
			}
			return
		}
		p.sawCreate = true
		p.kind = Created
	case Deleted:
		if p.sawCreate {
			delete(w.pending, path)
			if p.timer != nil {
				p.timer.Stop()
			}
			return
		}
		p.sawDelete = true
		p.kind = Deleted
	case Modified:
		if p.kind != Created {
			p.kind = Modified
		}
	}

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(w.debounce, func() { w.settle(path) })
}

// settle moves path's debounce-expired event into the dispatch batch,
// flushing immediately at maxBatch or shortly after the last addition.
func (w *Watcher) settle(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.batch = append(w.batch, Event{Path: path, Kind: p.kind})

	if len(w.batch) >= w.maxBatch {
		batch := w.batch
		w.batch = nil
		if w.flusher != nil {
			w.flusher.Stop()
			w.flusher = nil
		}
		w.mu.Unlock()
		w.dispatch(batch)
		return
	}

	if w.flusher != nil {
		w.flusher.Stop()
	}
	w.flusher = time.AfterFunc(w.debounce, w.flushBatch)
	w.mu.Unlock()
}

func (w *Watcher) flushBatch() {
	w.mu.Lock()
	batch := w.batch
	w.batch = nil
	w.flusher = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	w.dispatch(batch)
}
