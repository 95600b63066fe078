package image

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Manager is the only component permitted to attach and detach images. It
// pairs a Driver with a SessionStore so that every attach is tracked and
// every detach releases its session exactly once.
type Manager struct {
	Driver Driver
	Store  *SessionStore
	Logger *slog.Logger

	// MountRoot is the directory under which working directories are
	// allocated when Attach is called without one.
	MountRoot string
}

// Attach makes the image available at workingDir and registers a session for
// it. When workingDir is empty a fresh unique directory is allocated under
// MountRoot. On failure no session remains registered and the error is a
// *MountError, except for the session-exclusivity violation which surfaces
// as ErrAlreadyMounted.
func (m *Manager) Attach(ctx context.Context, handle ImageHandle, workingDir string) (*MountSession, error) {
	if m.Driver == nil {
		return nil, errors.New("image driver is not configured")
	}
	if m.Store == nil {
		return nil, errors.New("session store is not configured")
	}
	if handle.Path == "" {
		return nil, errors.New("image path is required")
	}

	dir := workingDir
	if dir == "" {
		if m.MountRoot == "" {
			return nil, errors.New("mount root is not configured")
		}
		dir = filepath.Join(m.MountRoot, "anvil-"+uuid.NewString())
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, &MountError{Handle: handle, WorkingDir: dir, Err: fmt.Errorf("resolve working directory: %w", err)}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &MountError{Handle: handle, WorkingDir: dir, Err: fmt.Errorf("create working directory: %w", err)}
	}
	if err := m.checkHeadroom(handle, dir); err != nil {
		return nil, &MountError{Handle: handle, WorkingDir: dir, Err: err}
	}

	// Reserve the directory before touching the attach subsystem so a
	// concurrent Attach on the same directory fails fast.
	session, err := m.Store.Begin(dir, handle)
	if err != nil {
		return nil, err
	}

	if err := m.Driver.Attach(ctx, handle, dir); err != nil {
		m.Store.End(dir)
		return nil, &MountError{Handle: handle, WorkingDir: dir, Err: err}
	}

	m.logger().Info("image attached",
		"image", handle.Path,
		"index", handle.Index,
		"working_dir", dir,
		"session", session.ID,
	)
	return session, nil
}

// Detach ends the session's attach, saving modifications when commit is true
// and discarding them otherwise. The session mapping is released on every
// path. After a successful detach the working directory is removed
// best-effort; a removal failure is logged but does not fail the detach,
// since detach success matters more than directory cleanup.
func (m *Manager) Detach(ctx context.Context, session *MountSession, commit bool) error {
	if m.Driver == nil {
		return errors.New("image driver is not configured")
	}
	if session == nil {
		return errors.New("session is required")
	}

	dir := session.WorkingDir
	defer m.Store.End(dir)

	if err := m.Driver.Detach(ctx, dir, commit); err != nil {
		return &DetachError{WorkingDir: dir, Commit: commit, Err: err}
	}

	if err := os.RemoveAll(dir); err != nil {
		m.logger().Warn("working directory cleanup failed", "working_dir", dir, "error", err)
	}

	m.logger().Info("image detached",
		"working_dir", dir,
		"commit", commit,
		"session", session.ID,
	)
	return nil
}

// Info reads metadata for the image container without attaching it.
func (m *Manager) Info(ctx context.Context, handle ImageHandle) (*ImageMetadata, error) {
	if m.Driver == nil {
		return nil, errors.New("image driver is not configured")
	}
	metadata, err := m.Driver.Info(ctx, handle.Path)
	if err != nil {
		return nil, &InfoError{Path: handle.Path, Err: err}
	}
	return metadata, nil
}

// checkHeadroom verifies that the volume holding the working directory has at
// least the image's size available. The check is skipped when either stat
// fails: the driver surfaces unreadable images with a better error.
func (m *Manager) checkHeadroom(handle ImageHandle, dir string) error {
	info, err := os.Stat(handle.Path)
	if err != nil {
		return nil
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		m.logger().Debug("statfs failed, skipping headroom check", "working_dir", dir, "error", err)
		return nil
	}

	available := int64(stat.Bavail) * stat.Bsize
	if available < info.Size() {
		return fmt.Errorf("insufficient space at %s: %d bytes available, image is %d bytes", dir, available, info.Size())
	}
	return nil
}

func (m *Manager) logger() *slog.Logger {
	if m != nil && m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
