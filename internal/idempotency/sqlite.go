package idempotency

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore keeps markers in the notification_dispatches table of a
// SQLite database. Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	conn *sql.DB
}

// NewSQLiteStore creates a store over conn. The schema is created by the
// database migrations.
func NewSQLiteStore(conn *sql.DB) *SQLiteStore {
	return &SQLiteStore{conn: conn}
}

// IsSent implements Store
func (s *SQLiteStore) IsSent(ctx context.Context, key Key) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM notification_dispatches WHERE record_id=? AND notification_type=? AND dedupe_key=?)`
	var exists bool
	if err := s.conn.QueryRowContext(ctx, q, key.RecordID, key.Type, key.DedupeKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check dispatch %s: %w", key, err)
	}
	return exists, nil
}

// MarkSent implements Store
func (s *SQLiteStore) MarkSent(ctx context.Context, key Key, sentAt time.Time) error {
	const q = `
INSERT INTO notification_dispatches (record_id, notification_type, dedupe_key, sent_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (record_id, notification_type, dedupe_key) DO NOTHING`
	if _, err := s.conn.ExecContext(ctx, q, key.RecordID, key.Type, key.DedupeKey, sentAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to mark dispatch %s: %w", key, err)
	}
	return nil
}

// Cleanup implements Store
func (s *SQLiteStore) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM notification_dispatches WHERE sent_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to clean dispatches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleaned dispatches: %w", err)
	}
	return int(n), nil
}
