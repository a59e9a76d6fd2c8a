// Package storage provides factory functions for creating storage-dependent components.
// The factory makes sure the idempotency store and the channel-link directory
// share one backend, and owns the lifecycle of its connections.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/salonhub/booking-sync/internal/config"
	"github.com/salonhub/booking-sync/internal/idempotency"
	"github.com/salonhub/booking-sync/internal/notify/directory"
	"github.com/salonhub/booking-sync/internal/state"
	"github.com/salonhub/booking-sync/internal/status"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates storage-dependent components as a family.
//
// The snapshot and the last sync run are always kept in the data directory;
// the storage type selects the backend of the idempotency store and the
// channel-link directory.
type Factory interface {
	// CreateStateStore creates the snapshot and sync run store
	CreateStateStore(ctx context.Context) (state.Store, error)

	// CreateIdempotencyStore creates the sent-notification store
	CreateIdempotencyStore(ctx context.Context) (idempotency.Store, error)

	// CreateDirectory creates the phone to chat id directory
	CreateDirectory(ctx context.Context) (directory.Directory, error)

	// CheckReadiness reports whether the backend is reachable
	CheckReadiness(ctx context.Context) error

	// Cleanup releases any resources held by this factory.
	// Should be called when the application shuts down.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured storage type
func NewStorageFactory(ctx context.Context, cfg *config.Config) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.Storage.Type {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg)
	case config.StorageTypeSQLite:
		return NewSQLiteFactory(ctx, cfg)
	case config.StorageTypeFile, "":
		return NewFileFactory(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}

// newStateStore builds the state store persisted under dataDir
func newStateStore(dataDir string) state.Store {
	return state.NewStore(
		state.WithRunPersistence(status.NewFileRunPersistence(dataDir)),
		state.WithSnapshotPersistence(state.NewFileSnapshotPersistence(dataDir)),
	)
}

func ensureDataDir(dataDir string) error {
	if dataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	slog.Debug("Data directory ready", "data_dir", dataDir)
	return nil
}
