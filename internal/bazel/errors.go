package bazel

import (
	"errors"
	"fmt"
)

var (
	// ErrRootsUnset is returned before the first successful UpdateWorkspace.
	ErrRootsUnset = errors.New("workspace roots not initialized")
	// ErrLabelNotFound means the label mapped to a path that is not an
	// existing file.
	ErrLabelNotFound = errors.New("label target does not exist")
)

// LabelResolutionError reports a label that could not be mapped to a file.
// Path is the candidate path when one was computed.
type LabelResolutionError struct {
	Label string
	Path  string
	Err   error
}

func (e *LabelResolutionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("bazel: resolve label %q: %v", e.Label, e.Err)
	}
	return fmt.Sprintf("bazel: resolve label %q (%s): %v", e.Label, e.Path, e.Err)
}

func (e *LabelResolutionError) Unwrap() error { return e.Err }

// WorkspaceUpdateError reports a failed info query or unusable output. The
// previous roots are left in place.
type WorkspaceUpdateError struct {
	Root string
	Err  error
}

func (e *WorkspaceUpdateError) Error() string {
	return fmt.Sprintf("bazel: update workspace %s: %v", e.Root, e.Err)
}

func (e *WorkspaceUpdateError) Unwrap() error { return e.Err }
