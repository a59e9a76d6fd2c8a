package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/salonhub/booking-sync/internal/config"
	"github.com/salonhub/booking-sync/internal/idempotency"
	"github.com/salonhub/booking-sync/internal/notify/directory"
	"github.com/salonhub/booking-sync/internal/state"
)

// FileFactory creates file-based storage components.
// All components created by this factory use JSON files in the data directory.
type FileFactory struct {
	dataDir string
}

var _ Factory = (*FileFactory)(nil)

// NewFileFactory creates a new file-based storage factory, ensuring the data
// directory exists
func NewFileFactory(cfg *config.Config) (*FileFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := ensureDataDir(cfg.Storage.DataDir); err != nil {
		return nil, err
	}

	slog.Info("Creating file-based storage factory", "data_dir", cfg.Storage.DataDir)
	return &FileFactory{dataDir: cfg.Storage.DataDir}, nil
}

// CreateStateStore creates the file-backed state store
func (f *FileFactory) CreateStateStore(_ context.Context) (state.Store, error) {
	return newStateStore(f.dataDir), nil
}

// CreateIdempotencyStore loads the file-backed idempotency store
func (f *FileFactory) CreateIdempotencyStore(_ context.Context) (idempotency.Store, error) {
	slog.Debug("Creating file-based idempotency store")
	return idempotency.NewFileStore(f.dataDir)
}

// CreateDirectory loads the file-backed channel-link directory
func (f *FileFactory) CreateDirectory(_ context.Context) (directory.Directory, error) {
	slog.Debug("Creating file-based channel-link directory")
	return directory.NewFileDirectory(f.dataDir)
}

// CheckReadiness is always ready for file storage
func (*FileFactory) CheckReadiness(_ context.Context) error {
	return nil
}

// Cleanup is a no-op for file storage
func (*FileFactory) Cleanup() {
	slog.Debug("Cleaning up file storage factory (no-op)")
}
