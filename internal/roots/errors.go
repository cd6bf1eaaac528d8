package roots

import (
	"errors"
	"fmt"
)

// Recoverable failures. None of them is fatal: an update that hits one is
// skipped or degrades to the best cached state.
var (
	// ErrUnresolvableToolVersion indicates the build tool version could not be
	// determined. The update is skipped.
	ErrUnresolvableToolVersion = errors.New("tool version cannot be resolved")

	// ErrMissingToolHome indicates an import carried no tool home. The update
	// is skipped.
	ErrMissingToolHome = errors.New("tool home is missing")

	// ErrPersistenceWrite indicates persisted state could not be written. The
	// in-memory transition still happens.
	ErrPersistenceWrite = errors.New("persistence write failed")

	// ErrCorruptData indicates persisted state exists but cannot be used. It is
	// treated as absent.
	ErrCorruptData = errors.New("persisted data is corrupt")

	// ErrUnlinked indicates an import completed for a root that is no longer
	// linked. The result is discarded.
	ErrUnlinked = errors.New("build root is not linked")

	// ErrSkipped indicates an import produced nothing new.
	ErrSkipped = errors.New("update skipped")
)

// RootError attaches an operation and root path to an error.
type RootError struct {
	Op   string // reconcile, persist, load, ...
	Root string // root path prefix
	Err  error
}

// Error implements the error interface.
func (e *RootError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Root, e.Err)
}

// Unwrap returns the underlying error.
func (e *RootError) Unwrap() error {
	return e.Err
}

func rootErr(op, root string, err error) error {
	return &RootError{Op: op, Root: root, Err: err}
}
