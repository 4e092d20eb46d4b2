package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/openeduhub/metaextract/internal/pipeline"
)

// Session is one live extraction session: its metadata plus the pipeline
// holding the field state.
type Session struct {
	ID        string
	Text      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Pipeline  *pipeline.Pipeline
}

type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

func (s *SessionStore) Get(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(sessionID string, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
}

// Update applies fn to a stored session under the write lock and stamps
// UpdatedAt.
func (s *SessionStore) Update(sessionID string, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, exists := s.sessions[sessionID]
	if !exists {
		return false
	}
	fn(session)
	session.UpdatedAt = time.Now()
	return true
}

// Snapshot returns a copy of a session's metadata, safe to read while the
// extraction goroutine keeps updating the original.
func (s *SessionStore) Snapshot(sessionID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	if !exists {
		return Session{}, false
	}
	return *session, true
}

// List returns metadata copies of all sessions, newest first.
func (s *SessionStore) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Session, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
