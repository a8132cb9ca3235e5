package auth

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAttemptStore(t *testing.T) {
	t.Run("Put And Take", func(t *testing.T) {
		store := NewAttemptStore(time.Minute)
		store.Put("state1", "verifier1")

		verifier, ok := store.Take("state1")
		if !ok {
			t.Fatal("expected attempt to be found")
		}
		if verifier != "verifier1" {
			t.Errorf("expected verifier1, got %s", verifier)
		}
	})

	t.Run("Take Is Single Use", func(t *testing.T) {
		store := NewAttemptStore(time.Minute)
		store.Put("state1", "verifier1")

		if _, ok := store.Take("state1"); !ok {
			t.Fatal("first take should succeed")
		}
		if _, ok := store.Take("state1"); ok {
			t.Error("second take for the same state should fail")
		}
	})

	t.Run("Unknown State", func(t *testing.T) {
		store := NewAttemptStore(time.Minute)
		if _, ok := store.Take("never-seen"); ok {
			t.Error("unknown state should not resolve")
		}
	})

	t.Run("Put Overwrites", func(t *testing.T) {
		store := NewAttemptStore(time.Minute)
		store.Put("state1", "old")
		store.Put("state1", "new")

		verifier, ok := store.Take("state1")
		if !ok || verifier != "new" {
			t.Errorf("expected overwritten verifier new, got %s (ok=%v)", verifier, ok)
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		store := NewAttemptStore(time.Minute)
		current := time.Now()
		store.now = func() time.Time { return current }

		store.Put("state1", "verifier1")
		current = current.Add(2 * time.Minute)

		if _, ok := store.Take("state1"); ok {
			t.Error("expired attempt should be treated as absent")
		}
		if store.Len() != 0 {
			t.Errorf("expired take should still remove the entry, got len %d", store.Len())
		}
	})

	t.Run("Sweep", func(t *testing.T) {
		store := NewAttemptStore(time.Minute)
		current := time.Now()
		store.now = func() time.Time { return current }

		store.Put("old", "v1")
		current = current.Add(2 * time.Minute)
		store.Put("fresh", "v2")

		if removed := store.Sweep(); removed != 1 {
			t.Errorf("expected 1 swept attempt, got %d", removed)
		}
		if _, ok := store.Take("fresh"); !ok {
			t.Error("sweep should not evict live attempts")
		}
	})

	t.Run("Default TTL", func(t *testing.T) {
		store := NewAttemptStore(0)
		if store.ttl != DefaultAttemptTTL {
			t.Errorf("expected default TTL %v, got %v", DefaultAttemptTTL, store.ttl)
		}
	})

	t.Run("Concurrent Duplicate Takes", func(t *testing.T) {
		store := NewAttemptStore(time.Minute)
		store.Put("shared-state", "verifier")

		const goroutines = 32
		var wg sync.WaitGroup
		successes := make(chan string, goroutines)

		for range goroutines {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if v, ok := store.Take("shared-state"); ok {
					successes <- v
				}
			}()
		}
		wg.Wait()
		close(successes)

		count := 0
		for v := range successes {
			count++
			if v != "verifier" {
				t.Errorf("unexpected verifier %s", v)
			}
		}
		if count != 1 {
			t.Errorf("expected exactly one successful take, got %d", count)
		}
	})

	t.Run("Concurrent Puts And Takes", func(t *testing.T) {
		store := NewAttemptStore(time.Minute)

		var wg sync.WaitGroup
		for i := range 64 {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				state := fmt.Sprintf("state-%d", n)
				store.Put(state, fmt.Sprintf("verifier-%d", n))
				if v, ok := store.Take(state); !ok || v != fmt.Sprintf("verifier-%d", n) {
					t.Errorf("lost attempt %s", state)
				}
			}(i)
		}
		wg.Wait()

		if store.Len() != 0 {
			t.Errorf("expected empty store, got %d entries", store.Len())
		}
	})
}
