package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteDirectory keeps links in the channel_links table of a SQLite database
type SQLiteDirectory struct {
	conn *sql.DB
	now  func() time.Time
}

// NewSQLiteDirectory creates a directory over conn
func NewSQLiteDirectory(conn *sql.DB) *SQLiteDirectory {
	return &SQLiteDirectory{conn: conn, now: time.Now}
}

// Lookup implements Directory
func (d *SQLiteDirectory) Lookup(ctx context.Context, phone string) (string, bool, error) {
	var chatID string
	err := d.conn.QueryRowContext(ctx, `SELECT chat_id FROM channel_links WHERE phone=?`, NormalizePhone(phone)).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up channel link: %w", err)
	}
	return chatID, true, nil
}

// Link implements Directory
func (d *SQLiteDirectory) Link(ctx context.Context, phone, chatID string) error {
	normalized, err := validateLink(phone, chatID)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO channel_links (phone, chat_id, linked_at)
VALUES (?, ?, ?)
ON CONFLICT (phone) DO UPDATE SET chat_id = excluded.chat_id, linked_at = excluded.linked_at`
	if _, err := d.conn.ExecContext(ctx, q, normalized, chatID, d.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to store channel link: %w", err)
	}
	return nil
}
