package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/salonhub/booking-sync/internal/db"
)

// PostgresDirectory keeps links in the channel_links table
type PostgresDirectory struct {
	pool db.PgxPool
}

// NewPostgresDirectory creates a directory over pool
func NewPostgresDirectory(pool db.PgxPool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// Lookup implements Directory
func (d *PostgresDirectory) Lookup(ctx context.Context, phone string) (string, bool, error) {
	var chatID string
	err := d.pool.QueryRow(ctx, `SELECT chat_id FROM channel_links WHERE phone=$1`, NormalizePhone(phone)).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up channel link: %w", err)
	}
	return chatID, true, nil
}

// Link implements Directory
func (d *PostgresDirectory) Link(ctx context.Context, phone, chatID string) error {
	normalized, err := validateLink(phone, chatID)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO channel_links (phone, chat_id, linked_at)
VALUES ($1, $2, now())
ON CONFLICT (phone) DO UPDATE SET chat_id = EXCLUDED.chat_id, linked_at = EXCLUDED.linked_at`
	if _, err := d.pool.Exec(ctx, q, normalized, chatID); err != nil {
		return fmt.Errorf("failed to store channel link: %w", err)
	}
	return nil
}
