// Package debug provides a gated diagnostic logger used throughout coderadar.
// Output is suppressed unless explicitly enabled, since the core is meant to
// run silently inside a host process.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug is a build-time flag. Override with:
//
//	go build -ldflags "-X github.com/coderadar-dev/coderadar/internal/debug.EnableDebug=true"
var EnableDebug = "false"

var (
	mu           sync.Mutex
	output       io.Writer
	file         *os.File
	forceEnabled bool
)

// Enable turns on debug output for the remainder of the process, regardless
// of EnableDebug or CODERADAR_DEBUG. Intended for CLI flags like --debug.
func Enable() {
	mu.Lock()
	defer mu.Unlock()
	forceEnabled = true
}

// SetOutput sets the writer debug output is written to. Pass nil to disable.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// InitLogFile opens a timestamped log file under os.TempDir() and routes
// debug output to it. Returns the path, or an error if the file couldn't be
// created. Call CloseLogFile when done.
func InitLogFile() (string, error) {
	mu.Lock()
	defer mu.Unlock()

	dir := filepath.Join(os.TempDir(), "coderadar-debug-logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create debug log dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("debug-%s.log", time.Now().Format("2006-01-02T150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("create debug log file: %w", err)
	}

	file = f
	output = f
	return path, nil
}

// CloseLogFile closes the debug log file if one is open.
func CloseLogFile() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	output = nil
	return err
}

// Enabled reports whether debug output is currently turned on.
func Enabled() bool {
	mu.Lock()
	forced := forceEnabled
	mu.Unlock()
	if forced || EnableDebug == "true" {
		return true
	}
	v := os.Getenv("CODERADAR_DEBUG")
	return v == "1" || v == "true"
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Printf writes a debug line when enabled and an output is configured.
func Printf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG] "+format, args...)
}

// Log writes a component-tagged debug line.
func Log(component, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format, append([]interface{}{component}, args...)...)
}

// LogIndexing logs an indexing-pipeline diagnostic.
func LogIndexing(format string, args ...interface{}) { Log("INDEX", format, args...) }

// LogSearch logs a search-path diagnostic.
func LogSearch(format string, args ...interface{}) { Log("SEARCH", format, args...) }

// LogWatch logs a file-watcher diagnostic.
func LogWatch(format string, args ...interface{}) { Log("WATCH", format, args...) }

// LogWorkspace logs a workspace-lifecycle diagnostic.
func LogWorkspace(format string, args ...interface{}) { Log("WORKSPACE", format, args...) }
