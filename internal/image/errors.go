package image

import (
	"errors"
	"fmt"
)

// ErrAlreadyMounted is returned by Begin when the working directory already
// has a live session.
var ErrAlreadyMounted = errors.New("working directory already has an active session")

// ErrCommitUnsupported is returned by read-only drivers when a detach
// requests that modifications be saved.
var ErrCommitUnsupported = errors.New("image container is read-only: commit is not supported")

// MountError reports a failed attach. No session remains registered after a
// MountError.
type MountError struct {
	Handle     ImageHandle
	WorkingDir string
	Err        error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("attach %s (index %d) at %s: %v", e.Handle.Path, e.Handle.Index, e.WorkingDir, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

// DetachError reports a failed detach. The working directory may still hold
// an attached image and needs operator attention.
type DetachError struct {
	WorkingDir string
	Commit     bool
	Err        error
}

func (e *DetachError) Error() string {
	action := "discard"
	if e.Commit {
		action = "commit"
	}
	return fmt.Sprintf("detach (%s) %s: %v", action, e.WorkingDir, e.Err)
}

func (e *DetachError) Unwrap() error { return e.Err }

// InfoError reports a failed metadata query.
type InfoError struct {
	Path string
	Err  error
}

func (e *InfoError) Error() string {
	return fmt.Sprintf("read image info %s: %v", e.Path, e.Err)
}

func (e *InfoError) Unwrap() error { return e.Err }
