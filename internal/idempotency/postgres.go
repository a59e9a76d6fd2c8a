package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/salonhub/booking-sync/internal/db"
)

// PostgresStore keeps markers in the notification_dispatches table
type PostgresStore struct {
	pool db.PgxPool
}

// NewPostgresStore creates a store over pool. The schema is created by the
// database migrations.
func NewPostgresStore(pool db.PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// IsSent implements Store
func (s *PostgresStore) IsSent(ctx context.Context, key Key) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM notification_dispatches WHERE record_id=$1 AND notification_type=$2 AND dedupe_key=$3)`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, key.RecordID, key.Type, key.DedupeKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check dispatch %s: %w", key, err)
	}
	return exists, nil
}

// MarkSent implements Store
func (s *PostgresStore) MarkSent(ctx context.Context, key Key, sentAt time.Time) error {
	const q = `
INSERT INTO notification_dispatches (record_id, notification_type, dedupe_key, sent_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (record_id, notification_type, dedupe_key) DO NOTHING`
	if _, err := s.pool.Exec(ctx, q, key.RecordID, key.Type, key.DedupeKey, sentAt); err != nil {
		return fmt.Errorf("failed to mark dispatch %s: %w", key, err)
	}
	return nil
}

// Cleanup implements Store
func (s *PostgresStore) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `DELETE FROM notification_dispatches WHERE sent_at < $1`
	tag, err := s.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean dispatches: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
