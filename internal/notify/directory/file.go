package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the directory file inside the data directory
const FileName = "channel_links.json"

// FileDirectory keeps links in memory and rewrites a JSON object of
// phone to chat id after every change
type FileDirectory struct {
	mu    sync.RWMutex
	links map[string]string
	path  string
}

// NewFileDirectory loads the links stored in basePath
func NewFileDirectory(basePath string) (*FileDirectory, error) {
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory data path: %w", err)
	}

	d := &FileDirectory{
		links: make(map[string]string),
		path:  filepath.Join(basePath, FileName),
	}

	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read channel links: %w", err)
	}

	var stored map[string]string
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse channel links: %w", err)
	}
	// older files may hold phones as entered
	for phone, chatID := range stored {
		d.links[NormalizePhone(phone)] = chatID
	}
	return d, nil
}

// Lookup implements Directory
func (d *FileDirectory) Lookup(_ context.Context, phone string) (string, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	chatID, ok := d.links[NormalizePhone(phone)]
	return chatID, ok, nil
}

// Link implements Directory
func (d *FileDirectory) Link(_ context.Context, phone, chatID string) error {
	normalized, err := validateLink(phone, chatID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	previous, existed := d.links[normalized]
	d.links[normalized] = chatID
	if err := d.saveLocked(); err != nil {
		if existed {
			d.links[normalized] = previous
		} else {
			delete(d.links, normalized)
		}
		return err
	}
	return nil
}

func (d *FileDirectory) saveLocked() error {
	data, err := json.MarshalIndent(d.links, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal channel links: %w", err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write channel links: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace channel links: %w", err)
	}
	return nil
}
