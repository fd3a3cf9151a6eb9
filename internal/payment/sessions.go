package payment

import "sync"

// Sessions owns one lifecycle per authenticated shopper. A checkout
// attempt never shares a lifecycle with another user, and an abandoned
// session can be dropped wholesale so no partial state leaks into the next
// attempt.
type Sessions struct {
	NewLifecycle func() *Lifecycle

	mu sync.Mutex
	m  map[string]*Lifecycle
}

// NewSessions builds a registry around the lifecycle factory.
func NewSessions(factory func() *Lifecycle) *Sessions {
	return &Sessions{NewLifecycle: factory, m: make(map[string]*Lifecycle)}
}

// For returns the shopper's lifecycle, creating it on first use.
func (s *Sessions) For(userID string) *Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lc, ok := s.m[userID]; ok {
		return lc
	}
	lc := s.NewLifecycle()
	s.m[userID] = lc
	return lc
}

// Drop discards the shopper's lifecycle entirely.
func (s *Sessions) Drop(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
