// Package session holds server-side login sessions. A session carries the
// username and the in-memory closing candidate of the clock state machine;
// losing the session loses an uncommitted candidate, which is accepted.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"kintai/internal/core"
)

// Session is the per-login state passed through the request path.
type Session struct {
	ID       string
	Username string

	mu        sync.Mutex
	candidate *core.Candidate
	expiresAt time.Time
}

// SetCandidate stores a just-closed interval awaiting commit.
func (s *Session) SetCandidate(c core.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidate = &c
}

// Candidate returns the pending candidate, if any.
func (s *Session) Candidate() (core.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidate == nil {
		return core.Candidate{}, false
	}
	return *s.candidate, true
}

// ClearCandidate drops the pending candidate after commit or discard.
func (s *Session) ClearCandidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidate = nil
}

// Manager tracks sessions by opaque token with TTL expiry.
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	ttl          time.Duration
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

func NewManager(ttl time.Duration) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	go m.startCleanup()
	return m
}

// Create opens a session for a logged-in user and returns it with a fresh
// token.
func (m *Manager) Create(username string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		expiresAt: time.Now().Add(m.ttl),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s
}

// Get resolves a token to a live session, sliding its expiry forward.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if time.Now().After(s.expiresAt) {
		delete(m.sessions, id)
		return nil, false
	}
	s.expiresAt = time.Now().Add(m.ttl)
	return s, true
}

// Destroy ends a session. Idempotent.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// startCleanup periodically drops expired sessions.
func (m *Manager) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) cleanupExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, s := range m.sessions {
		if now.After(s.expiresAt) {
			delete(m.sessions, id)
		}
	}
}

// Stop shuts down the cleanup goroutine.
func (m *Manager) Stop() {
	m.shutdownOnce.Do(func() {
		close(m.stopCleanup)
	})
}
