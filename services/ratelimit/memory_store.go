package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps window events in process memory. Suitable for a single
// instance or for tests; a fleet shares counters through RedisStore instead.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewMemoryStore creates an empty in-memory window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]time.Time)}
}

// Count implements WindowStore.
func (s *MemoryStore) Count(_ context.Context, key string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.events[key]
	// Events are appended in order, so the first index at or after since
	// bounds the live suffix.
	idx := sort.Search(len(events), func(i int) bool {
		return !events[i].Before(since)
	})
	return int64(len(events) - idx), nil
}

// Record implements WindowStore.
func (s *MemoryStore) Record(_ context.Context, key string, at time.Time, retain time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := at.Add(-retain)
	events := s.events[key]
	idx := sort.Search(len(events), func(i int) bool {
		return !events[i].Before(cutoff)
	})
	if idx > 0 {
		events = append([]time.Time(nil), events[idx:]...)
	}
	s.events[key] = append(events, at)
	return nil
}
