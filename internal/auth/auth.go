// Package auth implements the dashboard's login gate: a fixed set of
// credentials and an in-memory session store. It is a demo gate, not a
// security boundary.
package auth

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"
)

const CookieName = "dashboard_session"

var credentials = map[string]string{
	"admin": "admin",
	"user":  "user",
	"LCG":   "BC_dashboard",
}

// Authenticate reports whether the pair is one of the accepted credentials.
func Authenticate(username, password string) bool {
	want, ok := credentials[username]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
}

type Session struct {
	ID        string
	Username  string
	ExpiresAt time.Time
}

// SessionStore keeps sessions in memory. A session is either present and
// unexpired (authenticated) or absent (anonymous).
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *SessionStore) Create(username string) Session {
	session := Session{
		ID:        uuid.NewString(),
		Username:  username,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session
}

// Get returns the session for id if it exists and has not expired. Expired
// sessions are dropped on lookup.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if !s.now().Before(session.ExpiresAt) {
		s.Delete(id)
		return Session{}, false
	}
	return session, true
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sweep drops every expired session and returns how many were removed.
func (s *SessionStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len counts stored sessions, expired ones included until they are swept
// or looked up.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
