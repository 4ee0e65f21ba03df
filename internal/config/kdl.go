package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL loads a ".coderadar.kdl" file from dir, if present, overlaying its
// values on top of Default(). Returns (nil, nil) when no file exists, per
// the ambient config component's role: the core never reads this itself,
// only the demo CLI does, to construct the Config value passed at
// construction (spec.md §6).
func LoadKDL(dir string) (*Config, error) {
	path := filepath.Join(dir, ".coderadar.kdl")
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := Default()
	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "index":
			applyIndexSection(cfg, n)
		case "search":
			applySearchSection(cfg, n)
		case "watch":
			applyWatchSection(cfg, n)
		case "workspace":
			applyWorkspaceSection(cfg, n)
		case "include":
			cfg.Rules.IncludeExtensions = collectStringArgs(n)
		case "exclude_dirs":
			cfg.Rules.ExcludeDirs = collectStringArgs(n)
		case "exclude":
			cfg.Rules.ExcludeGlobs = collectStringArgs(n)
		}
	}

	return cfg, nil
}

func applyIndexSection(cfg *Config, n *document.Node) {
	for _, c := range n.Children {
		switch nodeName(c) {
		case "buffer_size_mb":
			if v, ok := firstIntArg(c); ok {
				cfg.Index.BufferSizeBytes = int64(v) * 1024 * 1024
			}
		case "max_buffered_docs":
			if v, ok := firstIntArg(c); ok {
				cfg.Index.MaxBufferedDocs = v
			}
		case "commit_interval_sec":
			if v, ok := firstIntArg(c); ok {
				cfg.Index.CommitInterval = time.Duration(v) * time.Second
			}
		case "stale_lock_timeout_min":
			if v, ok := firstIntArg(c); ok {
				cfg.Index.StaleLockTimeout = time.Duration(v) * time.Minute
			}
		case "max_field_length":
			if v, ok := firstIntArg(c); ok {
				cfg.Index.MaxFieldLength = v
			}
		}
	}
}

func applySearchSection(cfg *Config, n *document.Node) {
	for _, c := range n.Children {
		switch nodeName(c) {
		case "default_context_lines":
			if v, ok := firstIntArg(c); ok {
				cfg.Search.DefaultContextLines = v
			}
		case "overfetch_multiplier":
			if v, ok := firstIntArg(c); ok {
				cfg.Search.OverfetchMultiplier = v
			}
		case "fuzzy_max_distance":
			if v, ok := firstIntArg(c); ok {
				cfg.Search.FuzzyMaxDistance = v
			}
		}
	}
}

func applyWatchSection(cfg *Config, n *document.Node) {
	for _, c := range n.Children {
		switch nodeName(c) {
		case "enabled":
			if v, ok := firstBoolArg(c); ok {
				cfg.Watch.Enabled = v
			}
		case "debounce_ms":
			if v, ok := firstIntArg(c); ok {
				cfg.Watch.DebounceTime = time.Duration(v) * time.Millisecond
			}
		case "max_batch":
			if v, ok := firstIntArg(c); ok {
				cfg.Watch.MaxBatch = v
			}
		}
	}
}

func applyWorkspaceSection(cfg *Config, n *document.Node) {
	for _, c := range n.Children {
		switch nodeName(c) {
		case "max_open":
			if v, ok := firstIntArg(c); ok {
				cfg.Workspace.MaxOpen = v
			}
		case "idle_timeout_min":
			if v, ok := firstIntArg(c); ok {
				cfg.Workspace.IdleTimeout = time.Duration(v) * time.Minute
			}
		}
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	b, ok := n.Arguments[0].Value.(bool)
	return b, ok
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	s, ok := n.Arguments[0].Value.(string)
	return s, ok
}

// collectStringArgs reads either inline arguments ("a" "b" "c") or
// block-form children (each child node's name is itself one string value).
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
