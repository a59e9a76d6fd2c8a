package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/salonhub/booking-sync/internal/config"
	"github.com/salonhub/booking-sync/internal/db"
	"github.com/salonhub/booking-sync/internal/idempotency"
	"github.com/salonhub/booking-sync/internal/notify/directory"
	"github.com/salonhub/booking-sync/internal/state"
)

// DatabaseFactory creates PostgreSQL-backed storage components. The schema
// is managed by the migrate command and is expected to be up to date.
type DatabaseFactory struct {
	dataDir string
	pool    db.PgxPool
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory creates a new database-backed storage factory.
// It establishes a connection pool to the configured PostgreSQL database.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Storage.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	slog.Info("Creating database-backed storage factory")

	pool, err := db.NewPool(ctx, cfg.Storage.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	factory, err := NewDatabaseFactoryWithPool(cfg, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return factory, nil
}

// NewDatabaseFactoryWithPool creates a database factory over an existing
// pool. The factory takes ownership of the pool.
func NewDatabaseFactoryWithPool(cfg *config.Config, pool db.PgxPool) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pool == nil {
		return nil, fmt.Errorf("connection pool cannot be nil")
	}
	if err := ensureDataDir(cfg.Storage.DataDir); err != nil {
		return nil, err
	}
	return &DatabaseFactory{dataDir: cfg.Storage.DataDir, pool: pool}, nil
}

// CreateStateStore creates the file-backed state store
func (d *DatabaseFactory) CreateStateStore(_ context.Context) (state.Store, error) {
	return newStateStore(d.dataDir), nil
}

// CreateIdempotencyStore creates the PostgreSQL idempotency store
func (d *DatabaseFactory) CreateIdempotencyStore(_ context.Context) (idempotency.Store, error) {
	slog.Debug("Creating database-backed idempotency store")
	return idempotency.NewPostgresStore(d.pool), nil
}

// CreateDirectory creates the PostgreSQL channel-link directory
func (d *DatabaseFactory) CreateDirectory(_ context.Context) (directory.Directory, error) {
	slog.Debug("Creating database-backed channel-link directory")
	return directory.NewPostgresDirectory(d.pool), nil
}

// CheckReadiness pings the database
func (d *DatabaseFactory) CheckReadiness(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Cleanup closes the database connection pool
func (d *DatabaseFactory) Cleanup() {
	slog.Info("Closing database connection pool")
	d.pool.Close()
}
