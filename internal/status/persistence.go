// Package status provides sync run tracking and persistence.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// RunFileName is the name of the file holding the last sync run
	RunFileName = "last_run.json"
)

// RunPersistence defines the interface for sync run persistence
type RunPersistence interface {
	// SaveRun saves the run to persistent storage, replacing the previous one
	SaveRun(ctx context.Context, run *SyncRun) error

	// LoadRun loads the last saved run.
	// Returns nil without error if nothing was saved yet (first start).
	LoadRun(ctx context.Context) (*SyncRun, error)
}

// fileRunPersistence implements RunPersistence using the local filesystem
type fileRunPersistence struct {
	basePath string
}

// NewFileRunPersistence creates a new file-based run persistence storing
// RunFileName inside basePath
func NewFileRunPersistence(basePath string) RunPersistence {
	return &fileRunPersistence{
		basePath: basePath,
	}
}

// SaveRun writes the run as JSON using a temporary file and an atomic rename
func (f *fileRunPersistence) SaveRun(_ context.Context, run *SyncRun) error {
	if err := os.MkdirAll(f.basePath, 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	filePath := filepath.Join(f.basePath, RunFileName)

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync run %s: %w", run.ID, err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file: %w", err)
	}

	return nil
}

// LoadRun reads the last run from disk
func (f *fileRunPersistence) LoadRun(_ context.Context) (*SyncRun, error) {
	filePath := filepath.Join(f.basePath, RunFileName)

	// #nosec G304 -- filePath is built from the configured data directory
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var run SyncRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status file: %w", err)
	}

	return &run, nil
}
