package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/salonhub/booking-sync/database"
	"github.com/salonhub/booking-sync/internal/config"
	"github.com/salonhub/booking-sync/internal/db"
	"github.com/salonhub/booking-sync/internal/idempotency"
	"github.com/salonhub/booking-sync/internal/notify/directory"
	"github.com/salonhub/booking-sync/internal/state"
)

// SQLiteFactory creates SQLite-backed storage components. The schema is
// migrated when the factory is created.
type SQLiteFactory struct {
	dataDir string
	conn    *sql.DB
}

var _ Factory = (*SQLiteFactory)(nil)

// NewSQLiteFactory opens the configured SQLite database and applies pending
// migrations
func NewSQLiteFactory(ctx context.Context, cfg *config.Config) (*SQLiteFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := ensureDataDir(cfg.Storage.DataDir); err != nil {
		return nil, err
	}

	slog.Info("Creating sqlite-backed storage factory", "path", cfg.Storage.SQLitePath)

	conn, err := db.OpenSQLite(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}

	m, err := database.NewSQLite(conn)
	if err == nil {
		err = database.Up(m)
	}
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Error("Failed to close sqlite database", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	return &SQLiteFactory{dataDir: cfg.Storage.DataDir, conn: conn}, nil
}

// CreateStateStore creates the file-backed state store
func (s *SQLiteFactory) CreateStateStore(_ context.Context) (state.Store, error) {
	return newStateStore(s.dataDir), nil
}

// CreateIdempotencyStore creates the SQLite idempotency store
func (s *SQLiteFactory) CreateIdempotencyStore(_ context.Context) (idempotency.Store, error) {
	return idempotency.NewSQLiteStore(s.conn), nil
}

// CreateDirectory creates the SQLite channel-link directory
func (s *SQLiteFactory) CreateDirectory(_ context.Context) (directory.Directory, error) {
	return directory.NewSQLiteDirectory(s.conn), nil
}

// CheckReadiness pings the database
func (s *SQLiteFactory) CheckReadiness(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite unreachable: %w", err)
	}
	return nil
}

// Cleanup closes the database
func (s *SQLiteFactory) Cleanup() {
	if err := s.conn.Close(); err != nil {
		slog.Error("Failed to close sqlite database", "error", err)
	}
}
