// Package fileindexer walks a workspace, applies include/exclude rules,
// detects binary files, and turns surviving files into indexstore.Document
// values (spec.md §4.1, FileIndexer). It commits in batches and tolerates
// per-file failures: one unreadable file never aborts the rest of the walk.
package fileindexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
	"github.com/coderadar-dev/coderadar/internal/debug"
	coderrors "github.com/coderadar-dev/coderadar/internal/errors"
	"github.com/coderadar-dev/coderadar/internal/indexstore"
	"github.com/coderadar-dev/coderadar/internal/pathresolver"
)

// Stats summarizes one IndexWorkspace or IndexBatch run.
type Stats struct {
	FilesIndexed int
	FilesSkipped int
	FilesDeleted int
	Truncated    int
	Errors       []error
}

// Indexer applies one workspace's rules and writes into one Store.
type Indexer struct {
	store *indexstore.Store
	cfg   *cfgpkg.Config
	root  string // canonical absolute workspace root
}

// New builds an Indexer for workspaceRoot (already canonicalized), writing
// into store under cfg's rules and index limits.
func New(store *indexstore.Store, cfg *cfgpkg.Config, workspaceRoot string) *Indexer {
	return &Indexer{store: store, cfg: cfg, root: workspaceRoot}
}

// IndexWorkspace walks the entire workspace tree, indexing every file the
// configured rules admit, with bounded concurrency and partial-failure
// tolerance. Directories matching an exclude rule are pruned, not descended.
func (ix *Indexer) IndexWorkspace(ctx context.Context) (Stats, error) {
	var paths []string
	err := filepath.WalkDir(ix.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entry: skip it, keep walking
		}
		if p == ix.root {
			return nil
		}
		rel, relErr := filepath.Rel(ix.root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if ix.shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ix.shouldIndexFile(rel) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return Stats{}, coderrors.PathInvalid("fileindexer.index_workspace", ix.root, err)
	}

	return ix.IndexBatch(ctx, paths)
}

// IndexBatch indexes the given absolute paths concurrently, committing once
// at the end. A failure on one file is recorded in Stats.Errors and does
// not stop the others. Paths the include/exclude rules reject are counted
// as skipped.
func (ix *Indexer) IndexBatch(ctx context.Context, paths []string) (Stats, error) {
	var (
		mu    sync.Mutex
		stats Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency())

	for _, p := range paths {
		p := p
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			result, err := ix.indexOneFile(p)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.Errors = append(stats.Errors, err)
			case result.skipped:
				stats.FilesSkipped++
			default:
				stats.FilesIndexed++
				if result.truncated {
					stats.Truncated++
					stats.Errors = append(stats.Errors, coderrors.ReadCapped("fileindexer.index_file", p))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, coderrors.Canceled("fileindexer.index_batch", ix.root, err)
	}

	if err := ix.store.Commit(); err != nil {
		return stats, err
	}
	debug.LogIndexing("batch complete for %s: indexed=%d skipped=%d truncated=%d errors=%d",
		ix.root, stats.FilesIndexed, stats.FilesSkipped, stats.Truncated, len(stats.Errors))
	return stats, nil
}

// RemoveFile deletes the document for absPath from the index, if present.
func (ix *Indexer) RemoveFile(absPath string) error {
	rel, err := filepath.Rel(ix.root, absPath)
	if err != nil {
		return coderrors.PathInvalid("fileindexer.remove", absPath, err)
	}
	rel = filepath.ToSlash(rel)
	if err := ix.store.DeleteByPath(rel); err != nil {
		return err
	}
	return ix.store.Commit()
}

type fileResult struct {
	skipped   bool
	truncated bool
}

func (ix *Indexer) indexOneFile(absPath string) (fileResult, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return fileResult{skipped: true}, nil // file vanished between walk and read
	}

	rel, err := filepath.Rel(ix.root, absPath)
	if err != nil {
		return fileResult{}, coderrors.PathInvalid("fileindexer.index_file", absPath, err)
	}
	rel = filepath.ToSlash(rel)
	if !ix.shouldIndexFile(rel) {
		return fileResult{skipped: true}, nil
	}

	binary, err := looksBinary(absPath, ix.cfg.Index.BinaryCheckBytes)
	if err != nil {
		return fileResult{skipped: true}, nil
	}
	if binary {
		return fileResult{skipped: true}, nil
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return fileResult{skipped: true}, nil
	}

	hash := fmt.Sprintf("%016x", xxhash.Sum64(raw))
	if existing, ok, err := ix.store.ContentHash(rel); err == nil && ok && existing == hash {
		return fileResult{skipped: true}, nil
	}

	content := string(raw)
	truncated := false
	if limit := ix.cfg.Index.MaxFieldLength; limit > 0 && len(content) > limit {
		// The limit counts characters; the byte length is only a cheap upper
		// bound on the character count.
		if runes := []rune(content); len(runes) > limit {
			content = string(runes[:limit])
			truncated = true
		}
	}

	relDir := filepath.ToSlash(filepath.Dir(rel))
	absDir := filepath.ToSlash(filepath.Dir(absPath))

	doc := &indexstore.Document{
		Path:              absPath,
		RelativePath:      rel,
		Filename:          filepath.Base(absPath),
		FilenameLower:     strings.ToLower(filepath.Base(absPath)),
		Extension:         strings.ToLower(filepath.Ext(absPath)),
		Directory:         absDir,
		RelativeDirectory: relDir,
		DirectoryName:     filepath.Base(absDir),
		Size:              info.Size(),
		Modified:          info.ModTime().UTC(),
		LineCount:         countLines(content),
		Content:           content,
		ContentSymbols:    content,
		ContentPatterns:   content,
		ContentHash:       hash,
	}

	if err := ix.store.AddOrReplace(rel, doc); err != nil {
		return fileResult{}, err
	}
	return fileResult{truncated: truncated}, nil
}

func (ix *Indexer) shouldSkipDir(name string) bool {
	for _, d := range ix.cfg.Rules.ExcludeDirs {
		if name == d {
			return true
		}
	}
	return false
}

func (ix *Indexer) shouldIndexFile(relPath string) bool {
	if pathresolver.MatchesAny(ix.cfg.Rules.ExcludeGlobs, relPath) {
		return false
	}
	if len(ix.cfg.Rules.IncludeExtensions) > 0 {
		ext := filepath.Ext(relPath)
		matched := false
		for _, want := range ix.cfg.Rules.IncludeExtensions {
			if strings.EqualFold(want, ext) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// looksBinary reports whether the first checkBytes bytes of the file
// contain a NUL byte, the standard cheap binary heuristic (grounded on the
// teacher's richer BinaryDetector/FileValidator, simplified here to the
// single signal spec.md calls for).
func looksBinary(path string, checkBytes int) (bool, error) {
	if checkBytes <= 0 {
		checkBytes = 8192
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, checkBytes)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false, nil
	}
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return true, nil
		}
	}
	return false, nil
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := 1
	for _, r := range content {
		if r == '\n' {
			n++
		}
	}
	return n
}

func concurrency() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	return n
}
