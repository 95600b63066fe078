package image

import (
	"fmt"
	"strings"
	"time"
)

// ImageHandle identifies a source image file together with the edition index
// used for multi-edition containers. It is immutable once a session starts.
type ImageHandle struct {
	Path  string
	Index int
}

// NewHandle validates the path and index and returns a handle. An index of
// zero selects the first edition.
func NewHandle(path string, index int) (ImageHandle, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ImageHandle{}, fmt.Errorf("image path is required")
	}
	if index < 0 {
		return ImageHandle{}, fmt.Errorf("image index %d is invalid: must be positive", index)
	}
	if index == 0 {
		index = 1
	}
	return ImageHandle{Path: path, Index: index}, nil
}

// SessionState captures the lifecycle state of a mount session.
type SessionState string

// SessionAttached is the only live state: a session exists exactly while the
// image is attached.
const SessionAttached SessionState = "attached"

// MountSession represents one active attach of an image to a working
// directory. At most one session exists per working directory.
type MountSession struct {
	ID         string
	Handle     ImageHandle
	WorkingDir string
	State      SessionState
	CreatedAt  time.Time
}

// EditionInfo describes one edition inside a multi-edition image container.
type EditionInfo struct {
	Index       int
	Name        string
	Description string
}

// ImageMetadata is the result of a read-only metadata query against an image
// container. It does not require an active session.
type ImageMetadata struct {
	Path       string
	Editions   []EditionInfo
	TotalBytes int64
}
