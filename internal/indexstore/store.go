// Package indexstore is the segmented, crash-safe, single-writer index for
// one workspace (spec.md §4.1, IndexStore). It wraps a bleve scorch index:
// bleve already gives us the segmented-writer / near-real-time-reader /
// merge-policy machinery the spec calls for, so this package's own job is
// the parts bleve doesn't do out of the box — the buffered commit policy,
// the cross-process writer lock with stale-lock reclaim, and the
// content-hash skip used by FileIndexer.
package indexstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
	"github.com/coderadar-dev/coderadar/internal/debug"
	coderrors "github.com/coderadar-dev/coderadar/internal/errors"
)

const lockFileName = "writer.lock"
const metaFileName = "index_meta.json"

// Store is the open index for one workspace. Safe for concurrent use: all
// mutation goes through Commit, which is serialized by mu.
type Store struct {
	path string
	cfg  cfgpkg.Index

	idx bleve.Index

	mu            sync.Mutex
	batch         *bleve.Batch
	bufferedDocs  int
	bufferedBytes int64
	lastCommit    time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup

	lockAcquired bool
}

// Open opens the index at path, creating it if absent, after acquiring the
// workspace's exclusive writer lock. A lock older than cfg.StaleLockTimeout
// is treated as abandoned (a prior process crashed) and reclaimed.
func Open(path string, cfg cfgpkg.Index) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, coderrors.PersistenceFailure("indexstore.open", path, err)
	}

	if err := acquireLock(path, cfg.StaleLockTimeout); err != nil {
		return nil, err
	}

	metaPath := filepath.Join(path, metaFileName)
	var idx bleve.Index
	var err error
	if _, statErr := os.Stat(metaPath); statErr == nil {
		idx, err = bleve.Open(path)
	} else {
		idx, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		releaseLock(path)
		return nil, coderrors.IndexUnavailable("indexstore.open", path, err)
	}

	s := &Store{
		path:         path,
		cfg:          cfg,
		idx:          idx,
		batch:        idx.NewBatch(),
		lastCommit:   time.Now(),
		stopCh:       make(chan struct{}),
		lockAcquired: true,
	}

	s.wg.Add(1)
	go s.commitLoop()

	debug.LogIndexing("indexstore opened at %s", path)
	return s, nil
}

// Index exposes the underlying bleve index for Searcher/QueryBuilder. Reads
// against it are near-real-time: they reflect the most recent Commit.
func (s *Store) Index() bleve.Index {
	return s.idx
}

// AddOrReplace stages doc for indexing under docID (the workspace-relative
// path), flushing the batch immediately if either buffer threshold is
// crossed. Call Commit to guarantee visibility before that.
func (s *Store) AddOrReplace(docID string, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.batch.Index(docID, doc); err != nil {
		return coderrors.PersistenceFailure("indexstore.add", docID, err)
	}
	s.bufferedDocs++
	s.bufferedBytes += int64(len(doc.Content)) + int64(len(doc.ContentSymbols)) + int64(len(doc.ContentPatterns))

	if s.bufferedDocs >= s.cfg.MaxBufferedDocs || s.bufferedBytes >= s.cfg.BufferSizeBytes {
		return s.commitLocked()
	}
	return nil
}

// DeleteByPath removes the document with the given docID from the index,
// staged in the same batch as pending adds.
func (s *Store) DeleteByPath(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch.Delete(docID)
	s.bufferedDocs++
	return nil
}

// Commit flushes any staged adds/deletes, making them visible to readers.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked()
}

func (s *Store) commitLocked() error {
	if s.batch.Size() == 0 {
		s.lastCommit = time.Now()
		return nil
	}
	if err := s.idx.Batch(s.batch); err != nil {
		return coderrors.PersistenceFailure("indexstore.commit", s.path, err)
	}
	s.batch = s.idx.NewBatch()
	s.bufferedDocs = 0
	s.bufferedBytes = 0
	s.lastCommit = time.Now()
	touchLock(s.path)
	return nil
}

// Clear discards every document and reopens an empty index in place, for
// IndexWorkspace's force_rebuild option. The writer lock is held throughout,
// so no other writer can observe the index mid-rebuild.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.idx.Close(); err != nil {
		return coderrors.PersistenceFailure("indexstore.clear", s.path, err)
	}
	if err := removeIndexContents(s.path); err != nil {
		return coderrors.PersistenceFailure("indexstore.clear", s.path, err)
	}

	idx, err := bleve.New(s.path, buildMapping())
	if err != nil {
		return coderrors.IndexUnavailable("indexstore.clear", s.path, err)
	}
	s.idx = idx
	s.batch = idx.NewBatch()
	s.bufferedDocs = 0
	s.bufferedBytes = 0
	s.lastCommit = time.Now()
	touchLock(s.path)
	return nil
}

// ContentHash returns the previously-indexed content hash stored for docID,
// used by FileIndexer to skip re-indexing unchanged files.
func (s *Store) ContentHash(docID string) (string, bool, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{docID}))
	req.Fields = []string{"content_hash"}
	req.Size = 1
	res, err := s.idx.Search(req)
	if err != nil {
		return "", false, coderrors.IndexUnavailable("indexstore.content_hash", docID, err)
	}
	if len(res.Hits) == 0 {
		return "", false, nil
	}
	hash, _ := res.Hits[0].Fields["content_hash"].(string)
	return hash, hash != "", nil
}

// DocCount returns the number of documents currently visible to readers.
func (s *Store) DocCount() (uint64, error) {
	n, err := s.idx.DocCount()
	if err != nil {
		return 0, coderrors.IndexUnavailable("indexstore.doc_count", s.path, err)
	}
	return n, nil
}

// commitLoop flushes on cfg.CommitInterval even when no buffer threshold has
// been crossed, bounding how stale a reader's view can get during a long
// quiet period between batches.
func (s *Store) commitLoop() {
	defer s.wg.Done()
	interval := s.cfg.CommitInterval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := s.Commit(); err != nil {
				debug.LogIndexing("background commit failed for %s: %v", s.path, err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// Close flushes pending writes, closes the underlying index, and releases
// the writer lock.
func (s *Store) Close() error {
	close(s.stopCh)
	s.wg.Wait()

	if err := s.Commit(); err != nil {
		debug.LogIndexing("final commit failed for %s: %v", s.path, err)
	}

	err := s.idx.Close()
	if s.lockAcquired {
		releaseLock(s.path)
		s.lockAcquired = false
	}
	if err != nil {
		return coderrors.PersistenceFailure("indexstore.close", s.path, err)
	}
	return nil
}

// acquireLock creates path/writer.lock exclusively, or reclaims it if the
// existing lock is older than staleAfter.
func acquireLock(path string, staleAfter time.Duration) error {
	lockPath := filepath.Join(path, lockFileName)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		fmt.Fprintf(f, "%d\n%d\n", os.Getpid(), time.Now().Unix())
		f.Close()
		return nil
	}
	if !os.IsExist(err) {
		return coderrors.PersistenceFailure("indexstore.lock", lockPath, err)
	}

	info, statErr := os.Stat(lockPath)
	if statErr != nil {
		return coderrors.LockUnavailable("indexstore.lock", lockPath, statErr)
	}
	if staleAfter > 0 && time.Since(info.ModTime()) > staleAfter {
		debug.LogIndexing("reclaiming stale writer lock at %s (age %s)", lockPath, time.Since(info.ModTime()))
		if rmErr := os.Remove(lockPath); rmErr != nil {
			return coderrors.LockUnavailable("indexstore.lock", lockPath, rmErr)
		}
		return acquireLock(path, staleAfter)
	}
	return coderrors.LockUnavailable("indexstore.lock", lockPath, fmt.Errorf("writer lock held, age %s", time.Since(info.ModTime())))
}

// removeIndexContents deletes every entry under path except the writer
// lock itself, so Clear never drops the lock it currently holds.
func removeIndexContents(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == lockFileName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(path, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func touchLock(path string) {
	lockPath := filepath.Join(path, lockFileName)
	now := time.Now()
	_ = os.Chtimes(lockPath, now, now)
}

func releaseLock(path string) {
	lockPath := filepath.Join(path, lockFileName)
	_ = os.Remove(lockPath)
}

// ParsePID reads the PID recorded in a lock file, for diagnostics only.
func ParsePID(path string) (int, error) {
	data, err := os.ReadFile(filepath.Join(path, lockFileName))
	if err != nil {
		return 0, err
	}
	var pid int
	for i, line := range splitLines(data) {
		if i == 0 {
			pid, err = strconv.Atoi(line)
			return pid, err
		}
	}
	return 0, fmt.Errorf("empty lock file")
}

func splitLines(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			out = append(out, string(b[start:i]))
			start = i + 1
		}
	}
	if start < len(b) {
		out = append(out, string(b[start:]))
	}
	return out
}
