package app

import (
	"context"
	"log/slog"

	"github.com/salonhub/booking-sync/internal/app/storage"
	"github.com/salonhub/booking-sync/internal/notify"
	"github.com/salonhub/booking-sync/internal/notify/directory"
	"github.com/salonhub/booking-sync/internal/platform"
	"github.com/salonhub/booking-sync/internal/state"
	pkgsync "github.com/salonhub/booking-sync/internal/sync"
	"github.com/salonhub/booking-sync/internal/sync/coordinator"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Storage owns the backend connections
	Storage storage.Factory

	// Store holds the snapshot and the sync run
	Store state.Store

	// Orchestrator runs platform syncs
	Orchestrator pkgsync.Orchestrator

	// Dispatcher sends notifications and broadcasts
	Dispatcher notify.Dispatcher

	// Directory maps client phones to chat ids
	Directory directory.Directory

	// Platform is the retrying platform client used for operator calls
	Platform platform.Client

	// Coordinator runs the periodic sync and dispatch jobs
	Coordinator coordinator.Coordinator
}

// Close waits for an active sync run to finish or ctx to expire, then
// releases the storage backend
func (c *AppComponents) Close(ctx context.Context) {
	if c.Orchestrator != nil {
		if err := c.Orchestrator.Shutdown(ctx); err != nil {
			slog.Warn("Sync run did not finish before shutdown", "error", err)
		}
	}
	if c.Storage != nil {
		c.Storage.Cleanup()
	}
}
