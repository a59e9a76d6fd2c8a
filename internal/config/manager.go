package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Manager keeps the most recent valid configuration read from a file.
// The file is only ever read. Components that support live updates (message
// templates) read through GetConfig on every use; everything else keeps the
// configuration it was built with until restart.
type Manager interface {
	// GetConfig returns the current configuration
	GetConfig() *Config

	// ReloadConfig reads the file and applies it if valid. On error the
	// previous configuration stays active.
	ReloadConfig() error

	// WatchConfig reloads the configuration whenever the file changes.
	// Blocks until ctx is cancelled.
	WatchConfig(ctx context.Context) error

	// Close releases the file watcher
	Close() error
}

// Validator checks a configuration before it is applied
type Validator interface {
	Validate(cfg *Config) error
}

type noopValidator struct{}

func (noopValidator) Validate(*Config) error { return nil }

type manager struct {
	mu        sync.RWMutex
	config    *Config
	path      string
	validator Validator
	watcher   *fsnotify.Watcher
	watcherMu sync.Mutex
}

// ManagerOption customizes a Manager
type ManagerOption func(*manager)

// WithValidator adds validation on top of the checks LoadConfig performs
func WithValidator(v Validator) ManagerOption {
	return func(m *manager) {
		m.validator = v
	}
}

// NewManager loads the configuration at path. It fails if the initial load
// fails.
func NewManager(path string, opts ...ManagerOption) (Manager, error) {
	m := &manager{path: path, validator: noopValidator{}}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.ReloadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load initial configuration: %w", err)
	}
	return m, nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *manager) ReloadConfig() error {
	cfg, err := LoadConfig(WithConfigPath(m.path))
	if err != nil {
		return err
	}
	if err := m.validator.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	slog.Info("Configuration loaded", "path", m.path)
	return nil
}

func (m *manager) WatchConfig(ctx context.Context) error {
	m.watcherMu.Lock()
	if m.watcher != nil {
		m.watcherMu.Unlock()
		return errors.New("config watcher is already running")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.watcherMu.Unlock()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	m.watcher = watcher
	m.watcherMu.Unlock()

	if err := watcher.Add(m.path); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", m.path, err)
	}
	slog.Info("Watching configuration file", "path", m.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher event channel closed")
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := m.ReloadConfig(); err != nil {
					slog.Error("Failed to reload configuration, keeping previous", "error", err)
				}
			}
			// Atomic replacements (ConfigMap symlink swaps, editors writing a
			// temp file) drop the watch on the old inode
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				_ = watcher.Add(m.path)
				if err := m.ReloadConfig(); err != nil {
					slog.Debug("Configuration not reloaded after replace", "error", err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

func (m *manager) Close() error {
	m.watcherMu.Lock()
	defer m.watcherMu.Unlock()

	if m.watcher == nil {
		return nil
	}
	if err := m.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	m.watcher = nil
	return nil
}
