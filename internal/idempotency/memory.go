package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps markers in memory only. Markers are lost on restart,
// which may cause a reminder inside an open window to be sent again.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key]time.Time)}
}

// IsSent implements Store
func (s *MemoryStore) IsSent(_ context.Context, key Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok, nil
}

// MarkSent implements Store
func (s *MemoryStore) MarkSent(_ context.Context, key Key, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		s.entries[key] = sentAt
	}
	return nil
}

// Cleanup implements Store
func (s *MemoryStore) Cleanup(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked(cutoff), nil
}

func (s *MemoryStore) cleanupLocked(cutoff time.Time) int {
	removed := 0
	for k, sentAt := range s.entries {
		if sentAt.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}
