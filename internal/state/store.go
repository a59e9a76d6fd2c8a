// Package state holds the process-wide snapshot and sync run state.
package state

import (
	"context"
	"errors"

	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/status"
)

// ErrNoSnapshot is returned when no snapshot has been published or loaded yet
var ErrNoSnapshot = errors.New("no snapshot available")

// Store owns the current snapshot and the current/last sync run.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store
type Store interface {
	// Initialize loads persisted state. A run left running by a previous
	// process is marked as failed. It is intended to be called once at startup.
	Initialize(ctx context.Context) error
	// Snapshot returns the published snapshot. The returned value is shared
	// and must not be modified.
	Snapshot(ctx context.Context) (*booking.Snapshot, error)
	// PublishSnapshot replaces the published snapshot wholesale
	PublishSnapshot(ctx context.Context, snapshot *booking.Snapshot) error
	// CurrentRun returns a copy of the current or last run, or nil if there was none
	CurrentRun(ctx context.Context) (*status.SyncRun, error)
	// UpdateRunAtomically applies testAndUpdateFn to the current run under
	// the store's lock. The function mutates the run in place and returns
	// whether it changed it; changed runs are persisted. The returned bool
	// is the function's result.
	UpdateRunAtomically(ctx context.Context, testAndUpdateFn func(run *status.SyncRun) bool) (bool, error)
	// Reset drops all in-memory state
	Reset(ctx context.Context) error
}
