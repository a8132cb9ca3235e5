package auth

import (
	"sync"
	"time"
)

// DefaultAttemptTTL bounds how long a login attempt may wait for its callback.
const DefaultAttemptTTL = 300 * time.Second

// attempt is one in-flight login: the verifier waiting for its callback.
type attempt struct {
	verifier  string
	createdAt time.Time
}

// AttemptStore holds in-flight authorization attempts keyed by state.
//
// States are single-use: [AttemptStore.Take] removes the entry it returns, so
// a replayed callback for the same state fails. Entries older than the TTL are
// treated as absent even when still physically present.
type AttemptStore struct {
	mu       sync.Mutex
	attempts map[string]attempt
	ttl      time.Duration
	now      func() time.Time
}

// NewAttemptStore creates an AttemptStore with the given TTL.
// A non-positive TTL falls back to [DefaultAttemptTTL].
func NewAttemptStore(ttl time.Duration) *AttemptStore {
	if ttl <= 0 {
		ttl = DefaultAttemptTTL
	}
	return &AttemptStore{
		attempts: make(map[string]attempt),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Put inserts or overwrites the attempt for state. Callers guarantee state
// uniqueness via randomness.
func (s *AttemptStore) Put(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[state] = attempt{verifier: verifier, createdAt: s.now()}
}

// Take atomically looks up and removes the attempt for state.
//
// Returns false for states never seen, already consumed, or expired; the
// three cases are indistinguishable to the caller.
func (s *AttemptStore) Take(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[state]
	if !ok {
		return "", false
	}
	delete(s.attempts, state)

	if s.now().Sub(a.createdAt) > s.ttl {
		return "", false
	}
	return a.verifier, true
}

// Sweep evicts expired attempts and returns how many were removed.
// Correctness does not depend on sweeping; it only bounds memory growth.
func (s *AttemptStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := s.now().Add(-s.ttl)
	for state, a := range s.attempts {
		if a.createdAt.Before(cutoff) {
			delete(s.attempts, state)
			removed++
		}
	}
	return removed
}

// Len reports how many attempts are physically stored, expired or not.
func (s *AttemptStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}
