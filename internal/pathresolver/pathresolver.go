// Package pathresolver is the sole authority for all on-disk paths the core
// touches. It never creates directories — callers do that — and it never
// guesses: resolution misses return false rather than a best-effort answer.
package pathresolver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	cfgpkg "github.com/coderadar-dev/coderadar/internal/config"
	coderrors "github.com/coderadar-dev/coderadar/internal/errors"
)

// maxPathLength rejects pathologically long paths outright (spec.md §4.1).
const maxPathLength = 240

// protectedPrefixes names workspace hash-dir basenames reserved for a
// collaborator (a separate "memory" knowledge store); the core refuses to
// open or clear them.
var protectedPrefixes = []string{"project-memory", "local-memory"}

var nonBasenameChar = regexp.MustCompile(`[^a-z0-9]`)

// Resolver resolves paths for one configuration snapshot. It holds no
// mutable state beyond the immutable config it was built from.
type Resolver struct {
	cfg *cfgpkg.Config
}

// New builds a Resolver bound to cfg. cfg is never mutated afterward.
func New(cfg *cfgpkg.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// BasePath returns the root directory all coderadar state lives under:
// <cwd>/.coderadar unless the config overrides it.
func (r *Resolver) BasePath() (string, error) {
	if r.cfg.BasePath != "" {
		return ExpandHome(r.cfg.BasePath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", coderrors.PathInvalid("base_path", "", err)
	}
	return filepath.Join(cwd, ".coderadar"), nil
}

// IndexPath returns the per-workspace index directory:
// <base>/index/<basename>_<hash8>.
func (r *Resolver) IndexPath(workspace string) (string, error) {
	canon, err := Canonicalize(workspace)
	if err != nil {
		return "", err
	}
	base, err := r.BasePath()
	if err != nil {
		return "", err
	}
	hash := ComputeWorkspaceHash(canon)
	name := Basename(canon) + "_" + hash
	return filepath.Join(base, "index", name), nil
}

// LogsPath returns <base>/logs.
func (r *Resolver) LogsPath() (string, error) {
	base, err := r.BasePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "logs"), nil
}

// BackupsPath returns <base>/backups[/<ts>].
func (r *Resolver) BackupsPath(ts string) (string, error) {
	base, err := r.BasePath()
	if err != nil {
		return "", err
	}
	p := filepath.Join(base, "backups")
	if ts != "" {
		p = filepath.Join(p, ts)
	}
	return p, nil
}

// MetadataPath returns the workspace metadata JSON file path for a
// workspace's index directory. An empty workspace is rejected with
// PathInvalid.
func (r *Resolver) MetadataPath(workspace string) (string, error) {
	var indexDir string
	var err error
	if workspace == "" {
		return "", coderrors.PathInvalid("metadata_path", workspace, fmt.Errorf("empty workspace"))
	}
	indexDir, err = r.IndexPath(workspace)
	if err != nil {
		return "", err
	}
	return filepath.Join(indexDir, "workspace_metadata.json"), nil
}

// Basename computes the sanitized basename component used in an index
// directory name: the final path segment, lowercased, with every run of
// each character outside [a-z0-9] replaced by '_'.
func Basename(canonPath string) string {
	base := filepath.Base(canonPath)
	base = strings.ToLower(base)
	return nonBasenameChar.ReplaceAllString(base, "_")
}

// ComputeWorkspaceHash returns the first 8 hex characters of SHA-256 over
// the canonical path.
func ComputeWorkspaceHash(canonPath string) string {
	sum := sha256.Sum256([]byte(canonPath))
	return hex.EncodeToString(sum[:])[:8]
}

// ExpandHome expands a leading "~" to the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", coderrors.PathInvalid("expand_home", path, err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Validate rejects traversal attempts and pathologically long paths.
func Validate(path string) error {
	if len(path) > maxPathLength {
		return coderrors.PathInvalid("validate", path, fmt.Errorf("path exceeds %d characters", maxPathLength))
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return coderrors.PathInvalid("validate", path, fmt.Errorf("path traversal not permitted"))
		}
	}
	return nil
}

// Canonicalize resolves symlinks and normalizes a workspace path: absolute,
// symlinks resolved, case-normalized on case-insensitive filesystems
// (delegated to filepath.EvalSymlinks + filepath.Clean, which already
// normalizes case on the platforms where the OS itself is case-insensitive).
func Canonicalize(path string) (string, error) {
	if err := Validate(path); err != nil {
		return "", err
	}
	expanded, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", coderrors.PathInvalid("canonicalize", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The path may not exist yet (e.g. being created); fall back to the
		// cleaned absolute path rather than failing resolution outright.
		if os.IsNotExist(err) {
			return filepath.Clean(abs), nil
		}
		return "", coderrors.PathInvalid("canonicalize", path, err)
	}
	return filepath.Clean(resolved), nil
}

// IsProtected reports whether indexDirName (the basename of an index
// directory, e.g. "myproject_a1b2c3d4") names a reserved workspace. Basename
// turns '-' into '_', so each prefix is matched both as written and in that
// sanitized form ("project-memory" and "project_memory").
func IsProtected(indexDirName string) bool {
	for _, prefix := range protectedPrefixes {
		if strings.HasPrefix(indexDirName, prefix+"_") || strings.HasPrefix(indexDirName, prefix) ||
			strings.HasPrefix(indexDirName, Basename(prefix)) {
			return true
		}
	}
	return false
}

// wellKnownRoots lists directories TryResolveWorkspace searches when a
// workspace's metadata file is missing or unreadable.
func wellKnownRoots() []string {
	var roots []string
	if cwd, err := os.Getwd(); err == nil {
		roots = append(roots, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, home)
		roots = append(roots, filepath.Join(home, "src"))
		roots = append(roots, filepath.Join(home, "code"))
		roots = append(roots, filepath.Join(home, "projects"))
	}
	return roots
}

// TryResolveWorkspace attempts to recover a workspace's original canonical
// path from its index directory name alone, when metadata is unavailable.
// It parses "<basename>_<hash8>" from the directory name, then searches a
// short list of well-known roots for a direct child whose recomputed hash
// matches. Returns ("", false) if no candidate matches — it never guesses.
func TryResolveWorkspace(indexDirName string) (string, bool) {
	idx := strings.LastIndex(indexDirName, "_")
	if idx < 0 || idx == len(indexDirName)-1 {
		return "", false
	}
	wantHash := indexDirName[idx+1:]
	if len(wantHash) != 8 {
		return "", false
	}

	for _, root := range wellKnownRoots() {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			candidate := filepath.Join(root, e.Name())
			canon, err := Canonicalize(candidate)
			if err != nil {
				continue
			}
			if ComputeWorkspaceHash(canon) == wantHash {
				return canon, true
			}
		}
	}
	return "", false
}

// MatchesAny reports whether relPath matches any of the doublestar glob
// patterns. Used by FileIndexer and FileWatcher for exclude-rule checks.
func MatchesAny(patterns []string, relPath string) bool {
	slashed := filepath.ToSlash(relPath)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, slashed); ok {
			return true
		}
	}
	return false
}
