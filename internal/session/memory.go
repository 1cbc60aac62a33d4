package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. It suits a single API
// instance; multi-instance deployments use RedisStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = s.clone()
	return nil
}

// Touch implements Store.
func (m *MemoryStore) Touch(_ context.Context, id string, at time.Time) error {
	return m.update(id, func(s *Session) { s.LastActivity = at })
}

// SetActiveThread implements Store.
func (m *MemoryStore) SetActiveThread(_ context.Context, id, threadID string) error {
	return m.update(id, func(s *Session) { s.ActiveThreadID = threadID })
}

func (m *MemoryStore) update(id string, fn func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	fn(s)
	return nil
}

// Delete implements Store. Deleting a missing session is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
