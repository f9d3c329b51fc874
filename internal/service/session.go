package service

import (
	"sync"

	"github.com/DungNguyen05/Economic-Agent/internal/domain"
)

// SessionStore keeps the recent turns of each conversation in memory.
// Sessions are never expired; they live until Clear or process exit.
type SessionStore struct {
	mu       sync.RWMutex
	maxTurns int
	sessions map[string][]domain.Turn
}

// NewSessionStore creates a store keeping at most maxTurns turns per session.
func NewSessionStore(maxTurns int) *SessionStore {
	if maxTurns <= 0 {
		maxTurns = 5
	}
	return &SessionStore{
		maxTurns: maxTurns,
		sessions: make(map[string][]domain.Turn),
	}
}

// Turns returns a copy of the session's turns, oldest first.
func (s *SessionStore) Turns(sessionID string) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}

// Update appends a turn, evicting the oldest ones beyond the cap.
func (s *SessionStore) Update(sessionID, question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[sessionID], domain.Turn{Question: question, Answer: answer})
	s.sessions[sessionID] = lastTurns(turns, s.maxTurns)
}

// Clear removes a session and reports whether it existed.
func (s *SessionStore) Clear(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// lastTurns returns the trailing n turns in a slice that does not alias
// the evicted prefix.
func lastTurns(turns []domain.Turn, n int) []domain.Turn {
	if len(turns) <= n {
		return turns
	}
	out := make([]domain.Turn, n)
	copy(out, turns[len(turns)-n:])
	return out
}
