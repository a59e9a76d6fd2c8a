package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileName is the idempotency file inside the data directory
const FileName = "dispatches.json"

type fileEntry struct {
	Key
	SentAt time.Time `json:"sentAt"`
}

// FileStore is a MemoryStore that rewrites a JSON file after every change
type FileStore struct {
	MemoryStore
	path string
}

// NewFileStore loads the markers in basePath, creating the directory if needed
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create idempotency directory: %w", err)
	}

	s := &FileStore{
		MemoryStore: MemoryStore{entries: make(map[Key]time.Time)},
		path:        filepath.Join(basePath, FileName),
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency file: %w", err)
	}

	var entries []fileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse idempotency file: %w", err)
	}
	for _, e := range entries {
		s.entries[e.Key] = e.SentAt
	}
	return s, nil
}

// MarkSent implements Store
func (s *FileStore) MarkSent(_ context.Context, key Key, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return nil
	}
	s.entries[key] = sentAt
	if err := s.saveLocked(); err != nil {
		// keep memory and disk consistent so the send is retried
		delete(s.entries, key)
		return err
	}
	return nil
}

// Cleanup implements Store
func (s *FileStore) Cleanup(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.cleanupLocked(cutoff)
	if removed == 0 {
		return 0, nil
	}
	if err := s.saveLocked(); err != nil {
		return removed, err
	}
	return removed, nil
}

func (s *FileStore) saveLocked() error {
	entries := make([]fileEntry, 0, len(s.entries))
	for k, sentAt := range s.entries {
		entries = append(entries, fileEntry{Key: k, SentAt: sentAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SentAt.Before(entries[j].SentAt)
	})

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency entries: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write idempotency file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace idempotency file: %w", err)
	}
	return nil
}
