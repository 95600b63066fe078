package image

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore tracks active attach sessions keyed by working directory and
// enforces that at most one session exists per directory. It performs
// in-memory bookkeeping only; it never touches the filesystem or the image
// attach subsystem.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*MountSession
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*MountSession),
	}
}

// Begin registers a session for the working directory. It fails with
// ErrAlreadyMounted when the directory already has a live session, preventing
// two builds from attaching to the same location. Paths are cleaned before
// keying so equivalent spellings collide.
func (s *SessionStore) Begin(workingDir string, handle ImageHandle) (*MountSession, error) {
	key := filepath.Clean(workingDir)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyMounted, key)
	}

	session := &MountSession{
		ID:         uuid.NewString(),
		Handle:     handle,
		WorkingDir: key,
		State:      SessionAttached,
		CreatedAt:  time.Now(),
	}
	s.sessions[key] = session
	return session, nil
}

// End removes the mapping for the working directory unconditionally. Ending
// an already-absent session is a no-op, so cleanup code can call End from
// multiple failure paths.
func (s *SessionStore) End(workingDir string) {
	key := filepath.Clean(workingDir)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Get returns the session registered for the working directory, if any.
func (s *SessionStore) Get(workingDir string) (*MountSession, bool) {
	key := filepath.Clean(workingDir)

	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key]
	return session, ok
}

// List returns all live sessions ordered by creation time.
func (s *SessionStore) List() []*MountSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*MountSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}
