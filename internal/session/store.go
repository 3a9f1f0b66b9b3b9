package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"patungan/internal/shared"
)

// Store holds the live sessions, keyed by ID. Sessions are purely in-memory:
// there is nothing to persist, so "storage" here is a guarded map rather than
// a database.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create starts a new session in the Capturing stage and returns it.
func (s *Store) Create() *Session {
	sess := newSession(uuid.New().String())
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session with the given ID.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %s", shared.ErrNotFound, id)
	}
	return sess, nil
}

// Delete discards a session entirely.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports how many sessions are live.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
