package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/salonhub/booking-sync/internal/booking"
)

// SnapshotFileName is the name of the persisted snapshot file
const SnapshotFileName = "snapshot.json"

// SnapshotPersistence stores the published snapshot across restarts
type SnapshotPersistence interface {
	SaveSnapshot(ctx context.Context, snapshot *booking.Snapshot) error
	// LoadSnapshot returns nil without error when nothing was saved
	LoadSnapshot(ctx context.Context) (*booking.Snapshot, error)
}

type fileSnapshotPersistence struct {
	basePath string
}

// NewFileSnapshotPersistence stores SnapshotFileName inside basePath
func NewFileSnapshotPersistence(basePath string) SnapshotPersistence {
	return &fileSnapshotPersistence{basePath: basePath}
}

func (f *fileSnapshotPersistence) SaveSnapshot(_ context.Context, snapshot *booking.Snapshot) error {
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	filePath := filepath.Join(f.basePath, SnapshotFileName)
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary snapshot file: %w", err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}
	return nil
}

func (f *fileSnapshotPersistence) LoadSnapshot(_ context.Context) (*booking.Snapshot, error) {
	// #nosec G304 -- path is built from the configured data directory
	data, err := os.ReadFile(filepath.Join(f.basePath, SnapshotFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap booking.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot file: %w", err)
	}
	return &snap, nil
}
