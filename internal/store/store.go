// Package store provides the in-memory session registry for IntakePipe.
//
// Sessions live only for the lifetime of the process. Each session carries its own
// lock so that turns on one session are serialized while different sessions proceed
// in parallel.
package store

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/BTreeMap/IntakePipe/internal/flow"
	"github.com/BTreeMap/IntakePipe/internal/models"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when no session has the requested id.
var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	mu   sync.Mutex
	sess *flow.Session
}

// InMemoryStore holds intake sessions keyed by id.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	newID    func() string
}

// Opts holds configuration for the in-memory store.
type Opts struct {
	IDGenerator func() string
}

// Option configures the in-memory store.
type Option func(*Opts)

// WithIDGenerator overrides the session id source. The default is a random UUID.
func WithIDGenerator(gen func() string) Option {
	return func(o *Opts) {
		o.IDGenerator = gen
	}
}

// NewInMemoryStore creates an empty session registry.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	cfg := Opts{IDGenerator: uuid.NewString}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryStore{
		sessions: make(map[string]*entry),
		newID:    cfg.IDGenerator,
	}
}

// Create registers a new session at the first step and returns its snapshot.
func (s *InMemoryStore) Create() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	for _, exists := s.sessions[id]; exists; _, exists = s.sessions[id] {
		id = s.newID()
	}
	sess := flow.NewSession(id)
	s.sessions[id] = &entry{sess: sess}
	slog.Debug("InMemoryStore.Create: session created", "session_id", id)
	return sess.Snapshot()
}

// Get returns a snapshot of the session.
func (s *InMemoryStore) Get(id string) (models.SessionSnapshot, error) {
	e, err := s.lookup(id)
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Snapshot(), nil
}

// WithSession runs fn while holding the session's lock.
func (s *InMemoryStore) WithSession(id string, fn func(*flow.Session) error) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.sess)
}

// Delete removes the session. A turn already running on it completes normally.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	slog.Debug("InMemoryStore.Delete: session deleted", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *InMemoryStore) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}
