// Package idempotency records which notifications have already been
// delivered so that each (record, type, dedupe key) is sent at most once.
package idempotency

import (
	"context"
	"fmt"
	"time"
)

// Key identifies one eligible send
type Key struct {
	RecordID  int64  `json:"recordId"`
	Type      string `json:"type"`
	DedupeKey string `json:"dedupeKey"`
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.RecordID, k.Type, k.DedupeKey)
}

// Store is the set of delivered notifications.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store
type Store interface {
	// IsSent reports whether key has been marked sent
	IsSent(ctx context.Context, key Key) (bool, error)
	// MarkSent records a confirmed delivery. Marking an already sent key
	// keeps the original timestamp.
	MarkSent(ctx context.Context, key Key, sentAt time.Time) error
	// Cleanup removes entries sent before cutoff and returns how many were removed
	Cleanup(ctx context.Context, cutoff time.Time) (int, error)
}
