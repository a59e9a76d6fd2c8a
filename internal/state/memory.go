package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/status"
)

// interruptedMessage is recorded on a run found running at startup
const interruptedMessage = "previous run was interrupted"

// Option configures the store
type Option func(*memoryStore)

// WithRunPersistence persists every run change
func WithRunPersistence(p status.RunPersistence) Option {
	return func(s *memoryStore) {
		s.runPersistence = p
	}
}

// WithSnapshotPersistence persists every published snapshot
func WithSnapshotPersistence(p SnapshotPersistence) Option {
	return func(s *memoryStore) {
		s.snapshotPersistence = p
	}
}

type memoryStore struct {
	runPersistence      status.RunPersistence
	snapshotPersistence SnapshotPersistence

	mu       sync.RWMutex
	snapshot *booking.Snapshot
	run      status.SyncRun
}

// NewStore creates an in-memory store with optional persistence
func NewStore(opts ...Option) Store {
	s := &memoryStore{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *memoryStore) Initialize(ctx context.Context) error {
	if s.snapshotPersistence != nil {
		snap, err := s.snapshotPersistence.LoadSnapshot(ctx)
		if err != nil {
			slog.Warn("Failed to load persisted snapshot, starting empty", "error", err)
		} else if snap != nil {
			s.mu.Lock()
			s.snapshot = snap
			s.mu.Unlock()
			slog.Info("Loaded persisted snapshot",
				"staff", len(snap.Staff),
				"services", len(snap.Services),
				"clients", len(snap.Clients),
				"records", len(snap.Records))
		}
	}

	if s.runPersistence == nil {
		return nil
	}

	run, err := s.runPersistence.LoadRun(ctx)
	if err != nil {
		slog.Warn("Failed to load last sync run", "error", err)
		return nil
	}
	if run == nil {
		slog.Info("No previous sync run found")
		return nil
	}

	// A single process owns the store, so a running run on disk cannot be alive
	if run.IsRunning() {
		slog.Warn("Previous sync run was interrupted, marking as failed", "run_id", run.ID)
		now := time.Now()
		run.Status = status.RunStatusError
		run.ErrorMessage = interruptedMessage
		run.FinishedAt = &now
		if err := s.runPersistence.SaveRun(ctx, run); err != nil {
			slog.Warn("Failed to persist corrected sync run", "run_id", run.ID, "error", err)
		}
	} else {
		slog.Info("Loaded last sync run", "run_id", run.ID, "status", run.Status)
	}

	s.mu.Lock()
	s.run = *run
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Snapshot(_ context.Context) (*booking.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, ErrNoSnapshot
	}
	return s.snapshot, nil
}

func (s *memoryStore) PublishSnapshot(ctx context.Context, snapshot *booking.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("cannot publish a nil snapshot")
	}
	published := snapshot.Clone()

	s.mu.Lock()
	s.snapshot = published
	s.mu.Unlock()

	if s.snapshotPersistence != nil {
		if err := s.snapshotPersistence.SaveSnapshot(ctx, published); err != nil {
			return fmt.Errorf("snapshot published but not persisted: %w", err)
		}
	}
	return nil
}

func (s *memoryStore) CurrentRun(_ context.Context) (*status.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.run.ID == "" {
		return nil, nil
	}
	return s.run.Clone(), nil
}

func (s *memoryStore) UpdateRunAtomically(
	ctx context.Context,
	testAndUpdateFn func(run *status.SyncRun) bool,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := s.run.Clone()
	if !testAndUpdateFn(candidate) {
		return false, nil
	}

	// Memory is updated before persisting so the run guard never depends on disk
	s.run = *candidate
	if s.runPersistence != nil {
		if err := s.runPersistence.SaveRun(ctx, candidate); err != nil {
			return true, fmt.Errorf("run updated but not persisted: %w", err)
		}
	}
	return true, nil
}

func (s *memoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	s.run = status.SyncRun{}
	return nil
}
