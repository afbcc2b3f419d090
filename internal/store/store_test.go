package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/IntakePipe/internal/flow"
	"github.com/BTreeMap/IntakePipe/internal/models"
)

func TestInMemoryStore_CreateGetDelete(t *testing.T) {
	s := NewInMemoryStore()
	snap := s.Create()
	if snap.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if snap.Step != models.StepFullName {
		t.Errorf("expected new session at full_name, got %s", snap.Step)
	}

	got, err := s.Get(snap.SessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SessionID != snap.SessionID {
		t.Errorf("expected id %s, got %s", snap.SessionID, got.SessionID)
	}

	if err := s.Delete(snap.SessionID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get(snap.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := s.Delete(snap.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestInMemoryStore_UniqueIDs(t *testing.T) {
	ids := []string{"a", "a", "b"}
	next := 0
	s := NewInMemoryStore(WithIDGenerator(func() string {
		id := ids[next]
		next++
		return id
	}))
	first := s.Create()
	second := s.Create()
	if first.SessionID != "a" || second.SessionID != "b" {
		t.Errorf("expected ids a and b, got %s and %s", first.SessionID, second.SessionID)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", s.Len())
	}
}

func TestInMemoryStore_WithSession(t *testing.T) {
	s := NewInMemoryStore()
	snap := s.Create()

	var seen string
	err := s.WithSession(snap.SessionID, func(sess *flow.Session) error {
		seen = sess.ID()
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != snap.SessionID {
		t.Errorf("expected callback on %s, got %s", snap.SessionID, seen)
	}

	wantErr := errors.New("boom")
	if err := s.WithSession(snap.SessionID, func(*flow.Session) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("expected callback error, got %v", err)
	}
	if err := s.WithSession("missing", func(*flow.Session) error { return nil }); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestInMemoryStore_SerializesTurns(t *testing.T) {
	s := NewInMemoryStore()
	snap := s.Create()

	var wg sync.WaitGroup
	inside := 0
	maxInside := 0
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithSession(snap.SessionID, func(*flow.Session) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Errorf("expected at most one turn inside a session, saw %d", maxInside)
	}
}

func TestInMemoryStore_ConcurrentSessions(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := s.Create()
			if _, err := s.Get(snap.SessionID); err != nil {
				t.Errorf("get %s: %v", snap.SessionID, err)
			}
		}()
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Errorf("expected 50 sessions, got %d", s.Len())
	}
}
