package handlers

import "sync"

// customMovement is the callback key of the free-form movement button.
const customMovement = "custom"

// session is the /sil dialogue state of one user.
type session struct {
	Movement        string
	CustomName      string
	WaitingForName  bool
	PromptMessageID []int
}

// Sessions holds the /sil dialogues, keyed by user id.
type Sessions struct {
	mu sync.Mutex
	m  map[int64]session
}

// NewSessions creates an empty session table.
func NewSessions() *Sessions {
	return &Sessions{m: make(map[int64]session)}
}

func (s *Sessions) get(userID int64) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[userID]
	return sess, ok
}

func (s *Sessions) put(userID int64, sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[userID] = sess
}

func (s *Sessions) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
