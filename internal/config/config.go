// Package config holds the read-only configuration struct passed into the
// core at construction. Nothing under internal/ reaches out to a global
// registry for configuration; every component receives this value explicitly.
package config

import "time"

// Config is the immutable configuration snapshot passed to the core.
type Config struct {
	// BasePath overrides PathResolver.base_path(); empty means
	// "<cwd>/.coderadar".
	BasePath string

	Index     Index
	Search    Search
	Watch     Watch
	Workspace Workspace
	Rules     Rules
}

// Index controls IndexStore and FileIndexer defaults.
type Index struct {
	BufferSizeBytes   int64         // in-memory buffer before flush (default 256MB)
	MaxBufferedDocs   int           // max buffered documents before flush (default 1,000)
	CommitInterval    time.Duration // background commit interval (default 60s)
	StaleLockTimeout  time.Duration // age before a writer lock is considered abandoned (default 15m)
	MaxFieldLength    int           // max chars indexed per content field (default 1,000,000)
	BinaryCheckBytes  int           // bytes scanned from file head for NUL-byte binary detection (default 8192)
}

// Search controls Searcher and LineResolver defaults.
type Search struct {
	DefaultContextLines int // lines of context on each side of a match (default 3)
	OverfetchMultiplier int // candidates collected per requested limit (default 2)
	FuzzyMaxDistance    int // max edit distance for fuzzy mode (default 2)
}

// Watch controls FileWatcher defaults.
type Watch struct {
	Enabled      bool
	DebounceTime time.Duration // per-path debounce window (default 500ms)
	MaxBatch     int           // max events coalesced per dispatch (default 50)
}

// Workspace controls WorkspaceManager defaults.
type Workspace struct {
	MaxOpen     int           // bounded LRU size (default 5)
	IdleTimeout time.Duration // idle eviction timeout (default 30m)
}

// Rules controls FileIndexer's include/exclude decisions.
type Rules struct {
	IncludeExtensions []string // allow-list of extensions, e.g. ".go"; empty means "all"
	ExcludeDirs       []string // deny-list of directory basenames, e.g. "node_modules"
	ExcludeGlobs      []string // doublestar patterns matched against relative paths
}

// Default returns the configuration used when no file or override is
// supplied, matching the numeric defaults named throughout the design.
func Default() *Config {
	return &Config{
		Index: Index{
			BufferSizeBytes:  256 * 1024 * 1024,
			MaxBufferedDocs:  1000,
			CommitInterval:   60 * time.Second,
			StaleLockTimeout: 15 * time.Minute,
			MaxFieldLength:   1_000_000,
			BinaryCheckBytes: 8192,
		},
		Search: Search{
			DefaultContextLines: 3,
			OverfetchMultiplier: 2,
			FuzzyMaxDistance:    2,
		},
		Watch: Watch{
			Enabled:      true,
			DebounceTime: 500 * time.Millisecond,
			MaxBatch:     50,
		},
		Workspace: Workspace{
			MaxOpen:     5,
			IdleTimeout: 30 * time.Minute,
		},
		Rules: Rules{
			IncludeExtensions: nil,
			ExcludeDirs: []string{
				"bin", "obj", "node_modules", ".git", "dist", "build",
				"vendor", "target", "__pycache__", ".idea", ".vscode",
			},
			ExcludeGlobs: []string{
				"**/*.min.js",
				"**/*.min.css",
			},
		},
	}
}
