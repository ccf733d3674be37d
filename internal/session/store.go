// Package session owns the set of in-flight call sessions. The Store is
// the single authority for creating, reading, mutating, and removing a
// session, and the only shared mutable state in the orchestrator core.
package session

import (
	"sync"

	"github.com/campaignkit/callagent/internal/domain"
)

// Store is a concurrency-safe map of callId to session. Mutations for the
// same callId are serialized on a per-entry mutex; different callIds
// proceed independently. The raw map is never exposed.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	session *domain.Session
	removed bool
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

// Create registers a new session for callId. Returns ErrSessionExists if
// the callId is already tracked.
func (s *Store) Create(callID string, customer domain.Customer) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[callID]; exists {
		return nil, domain.ErrSessionExists
	}

	sess := domain.NewSession(callID, customer)
	s.sessions[callID] = &entry{session: sess}
	return cloneSession(sess), nil
}

// Get returns a snapshot of the session for callId, or ErrSessionNotFound.
func (s *Store) Get(callID string) (*domain.Session, error) {
	e, err := s.lookup(callID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(e.session), nil
}

// Mutate applies fn to the session under exclusive per-callId access. At
// most one Mutate runs at a time for a given callId; a concurrent second
// caller waits for the first and then observes its result. fn must not
// block on external I/O.
func (s *Store) Mutate(callID string, fn func(*domain.Session) error) error {
	e, err := s.lookup(callID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return domain.ErrSessionNotFound
	}
	return fn(e.session)
}

// Remove deletes the session and returns its final snapshot. Removing an
// unknown or already-removed callId returns ErrSessionNotFound; the normal
// termination path and the timeout supervisor race for this, and exactly
// one of them wins.
func (s *Store) Remove(callID string) (*domain.Session, error) {
	s.mu.Lock()
	e, ok := s.sessions[callID]
	if ok {
		delete(s.sessions, callID)
	}
	s.mu.Unlock()

	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	// Wait out any in-flight mutation so the snapshot is final.
	e.mu.Lock()
	e.removed = true
	sess := e.session
	e.mu.Unlock()
	return sess, nil
}

// Len returns the number of in-flight sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) lookup(callID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[callID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return e, nil
}

// cloneSession copies the session so readers never share slices or maps
// with a concurrent mutation.
func cloneSession(in *domain.Session) *domain.Session {
	out := *in
	out.Transcript = append([]domain.Turn(nil), in.Transcript...)
	out.Context.SentimentTrend = append([]domain.Sentiment(nil), in.Context.SentimentTrend...)
	out.Retries = make(map[domain.State]int, len(in.Retries))
	for k, v := range in.Retries {
		out.Retries[k] = v
	}
	return &out
}
