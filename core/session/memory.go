package session

import (
	"sync"
	"time"
)

// CancelFunc is invoked with the conversation id whenever a session is deleted.
type CancelFunc func(id string)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	initial  State
	onDelete CancelFunc
	now      func() time.Time
}

// Option customises a memory store.
type Option func(*memoryStore)

// WithOnDelete registers the hook that cancels timers owned by a deleted session.
func WithOnDelete(fn CancelFunc) Option {
	return func(m *memoryStore) { m.onDelete = fn }
}

// WithClock overrides time.Now for CreatedAt/UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(m *memoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryStore constructs an in-memory Store whose fresh sessions start in initial.
func NewMemoryStore(initial State, opts ...Option) Store {
	m := &memoryStore{
		sessions: make(map[string]*Session),
		initial:  initial,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate returns the stored session or stores and returns a fresh one.
func (m *memoryStore) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s
	}
	now := m.now()
	s := &Session{
		ConversationID: id,
		State:          m.initial,
		Fields:         make(map[string]string),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.sessions[id] = s
	return s
}

// Get returns the stored session if present.
func (m *memoryStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Put replaces the stored session for id.
func (m *memoryStore) Put(id string, s *Session) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ConversationID = id
	s.UpdatedAt = m.now()
	m.sessions[id] = s
}

// Delete removes the session and cancels its timers. The hook runs outside the lock.
func (m *memoryStore) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	hook := m.onDelete
	m.mu.Unlock()

	if hook != nil {
		hook(id)
	}
}

// Len reports the number of live sessions.
func (m *memoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
