package token

import "sync"

// Sessions remembers which tokens the gateway has handed out so logout can
// drop them and ops can count them. It is deliberately non-authoritative:
// a token absent from this map but carrying a valid signature still
// authenticates, and entries are never consulted when verifying.
type Sessions struct {
	mu      sync.Mutex
	byToken map[string]string // token -> player id
}

func NewSessions() *Sessions {
	return &Sessions{byToken: make(map[string]string)}
}

// Put records a freshly issued token.
func (s *Sessions) Put(token, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[token] = playerID
}

// PlayerID looks up who a token was issued to.
func (s *Sessions) PlayerID(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byToken[token]
	return id, ok
}

// Remove drops a token. Removing an unknown token is a no-op.
func (s *Sessions) Remove(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
}

// ActiveCount reports how many issued tokens have not been logged out.
func (s *Sessions) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}
