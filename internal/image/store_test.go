package image

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func TestSessionStoreEnforcesExclusivity(t *testing.T) {
	store := NewSessionStore()
	handle := ImageHandle{Path: "base.wim", Index: 1}

	session, err := store.Begin("/tmp/anvil-test", handle)
	if err != nil {
		t.Fatalf("first begin failed: %v", err)
	}
	if session.WorkingDir != filepath.Clean("/tmp/anvil-test") {
		t.Fatalf("unexpected working dir: %s", session.WorkingDir)
	}
	if session.State != SessionAttached {
		t.Fatalf("unexpected state: %s", session.State)
	}

	if _, err := store.Begin("/tmp/anvil-test", handle); !errors.Is(err, ErrAlreadyMounted) {
		t.Fatalf("expected ErrAlreadyMounted, got %v", err)
	}
}

func TestSessionStoreCleansPaths(t *testing.T) {
	store := NewSessionStore()
	handle := ImageHandle{Path: "base.wim", Index: 1}

	if _, err := store.Begin("/tmp/anvil-test/", handle); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if _, err := store.Begin("/tmp/anvil-test/./", handle); !errors.Is(err, ErrAlreadyMounted) {
		t.Fatalf("equivalent path spelling did not collide: %v", err)
	}
	if _, ok := store.Get("/tmp/anvil-test"); !ok {
		t.Fatal("session not found under cleaned path")
	}
}

func TestSessionStoreEndIsIdempotent(t *testing.T) {
	store := NewSessionStore()
	handle := ImageHandle{Path: "base.wim", Index: 1}

	if _, err := store.Begin("/tmp/anvil-test", handle); err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	store.End("/tmp/anvil-test")
	store.End("/tmp/anvil-test") // must be a no-op

	if _, err := store.Begin("/tmp/anvil-test", handle); err != nil {
		t.Fatalf("begin after end failed: %v", err)
	}
}

func TestSessionStoreConcurrentBegin(t *testing.T) {
	store := NewSessionStore()
	handle := ImageHandle{Path: "base.wim", Index: 1}

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Begin("/tmp/anvil-race", handle)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, ErrAlreadyMounted) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful begin, got %d", succeeded)
	}
}

func TestSessionStoreListOrdersByCreation(t *testing.T) {
	store := NewSessionStore()
	handle := ImageHandle{Path: "base.wim", Index: 1}

	for _, dir := range []string{"/tmp/a", "/tmp/b", "/tmp/c"} {
		if _, err := store.Begin(dir, handle); err != nil {
			t.Fatalf("begin %s failed: %v", dir, err)
		}
	}

	sessions := store.List()
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i].CreatedAt.Before(sessions[i-1].CreatedAt) {
			t.Fatal("sessions not ordered by creation time")
		}
	}
}
