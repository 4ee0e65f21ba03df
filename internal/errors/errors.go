// Package errors defines the stable error discriminants core operations
// return, per the error handling design: each kind is distinguishable by
// callers via errors.As/Is without string matching.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind is a stable discriminant for a CoreError.
type Kind string

const (
	KindPathInvalid        Kind = "path_invalid"
	KindWorkspaceUnknown   Kind = "workspace_unknown"
	KindIndexUnavailable   Kind = "index_unavailable"
	KindLockUnavailable    Kind = "lock_unavailable"
	KindPersistenceFailure Kind = "persistence_failure"
	KindQueryMalformed     Kind = "query_malformed"
	KindProtectedPath      Kind = "protected_path"
	KindCanceled           Kind = "canceled"
	KindReadCapped         Kind = "read_capped"
)

// CoreError is the single error type returned across coderadar's core API.
type CoreError struct {
	Kind       Kind
	Op         string
	Path       string
	Underlying error
	Timestamp  time.Time
}

func new_(kind Kind, op, path string, underlying error) *CoreError {
	return &CoreError{
		Kind:       kind,
		Op:         op,
		Path:       path,
		Underlying: underlying,
		Timestamp:  time.Now(),
	}
}

// PathInvalid reports a path that failed validation (traversal, length, unreadable).
func PathInvalid(op, path string, err error) *CoreError {
	return new_(KindPathInvalid, op, path, err)
}

// WorkspaceUnknown reports a lookup against a path with no existing index.
func WorkspaceUnknown(op, path string) *CoreError {
	return new_(KindWorkspaceUnknown, op, path, nil)
}

// IndexUnavailable reports a corrupt or missing index under a known workspace.
func IndexUnavailable(op, path string, err error) *CoreError {
	return new_(KindIndexUnavailable, op, path, err)
}

// LockUnavailable reports a writer lock contested beyond recovery.
func LockUnavailable(op, path string, err error) *CoreError {
	return new_(KindLockUnavailable, op, path, err)
}

// PersistenceFailure reports a failed write (disk, permissions).
func PersistenceFailure(op, path string, err error) *CoreError {
	return new_(KindPersistenceFailure, op, path, err)
}

// QueryMalformed reports a query that could not be parsed in the requested mode.
func QueryMalformed(op, text string, err error) *CoreError {
	return new_(KindQueryMalformed, op, text, err)
}

// ProtectedPath reports an attempt to index or clear a reserved workspace name.
func ProtectedPath(op, path string) *CoreError {
	return new_(KindProtectedPath, op, path, nil)
}

// Canceled reports a deadline or explicit cancellation.
func Canceled(op, path string, err error) *CoreError {
	return new_(KindCanceled, op, path, err)
}

// ReadCapped reports a file whose content exceeded the max field length and
// was indexed with truncation.
func ReadCapped(op, path string) *CoreError {
	return new_(KindReadCapped, op, path, nil)
}

func (e *CoreError) Error() string {
	if e.Path != "" {
		if e.Underlying != nil {
			return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Path, e.Underlying)
		}
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Op, e.Path)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// Is lets errors.Is match on Kind alone, via a sentinel-shaped CoreError.
func (e *CoreError) Is(target error) bool {
	var ce *CoreError
	if errors.As(target, &ce) {
		return ce.Kind == e.Kind
	}
	return false
}

// KindOf extracts the Kind of err, if it is (or wraps) a *CoreError.
func KindOf(err error) (Kind, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
