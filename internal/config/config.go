// Package config provides configuration loading and validation for booking sync.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/salonhub/booking-sync/internal/telemetry"
)

const (
	// StorageTypeFile keeps state, idempotency markers and channel links in JSON files
	StorageTypeFile = "file"

	// StorageTypeDatabase keeps idempotency markers and channel links in PostgreSQL
	StorageTypeDatabase = "database"

	// StorageTypeSQLite keeps idempotency markers and channel links in a SQLite file
	StorageTypeSQLite = "sqlite"
)

// EnvPrefix is the prefix of every environment variable read by booking sync
const EnvPrefix = "BOOKING_SYNC"

// Environment variables consulted for secrets when no file is configured
const (
	EnvPlatformPartnerToken = "BOOKING_SYNC_PLATFORM_PARTNER_TOKEN"
	EnvPlatformUserToken    = "BOOKING_SYNC_PLATFORM_USER_TOKEN"
	EnvTelegramToken        = "BOOKING_SYNC_TELEGRAM_TOKEN"
	EnvDatabasePassword     = "BOOKING_SYNC_DATABASE_PASSWORD"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// EvalSymlinks also cleans the path
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Platform      PlatformConfig      `yaml:"platform"`
	Sync          SyncConfig          `yaml:"sync"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Messaging     MessagingConfig     `yaml:"messaging"`
	Storage       StorageConfig       `yaml:"storage"`
	Telemetry     *telemetry.Config   `yaml:"telemetry,omitempty"`
}

// PlatformConfig defines how to reach the booking platform
type PlatformConfig struct {
	// BaseURL is the platform API root, e.g. https://api.example.com/api/v1
	BaseURL   string `yaml:"baseURL"`
	CompanyID int64  `yaml:"companyID"`

	// Tokens are read from the file, then the environment, then the inline value
	PartnerToken     string `yaml:"partnerToken,omitempty"`
	PartnerTokenFile string `yaml:"partnerTokenFile,omitempty"`
	UserToken        string `yaml:"userToken,omitempty"`
	UserTokenFile    string `yaml:"userTokenFile,omitempty"`

	// Timeout bounds a single HTTP request
	Timeout time.Duration `yaml:"timeout,omitempty"`

	ClientsPageSize int `yaml:"clientsPageSize,omitempty"`
	RecordsPageSize int `yaml:"recordsPageSize,omitempty"`
}

// SyncConfig defines the sync run behaviour
type SyncConfig struct {
	// MinVisits is the visit count below which a client is reported as skipped
	MinVisits        int `yaml:"minVisits,omitempty"`
	WindowPastDays   int `yaml:"windowPastDays,omitempty"`
	WindowFutureDays int `yaml:"windowFutureDays,omitempty"`

	// Interval enables the periodic sync when positive
	Interval time.Duration `yaml:"interval,omitempty"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig defines the retry policy for platform calls
type RetryConfig struct {
	MaxAttempts    int           `yaml:"maxAttempts,omitempty"`
	RateLimitDelay time.Duration `yaml:"rateLimitDelay,omitempty"`
	TransientDelay time.Duration `yaml:"transientDelay,omitempty"`
	InterCallDelay time.Duration `yaml:"interCallDelay,omitempty"`
}

// NotificationsConfig defines the dispatch scheduler
type NotificationsConfig struct {
	// Enabled turns on the periodic dispatch loop; the HTTP tick works either way
	Enabled   bool   `yaml:"enabled"`
	SalonName string `yaml:"salonName,omitempty"`

	// Timezone is the IANA zone the salon operates in
	Timezone string `yaml:"timezone,omitempty"`

	DayReminderHour       int           `yaml:"dayReminderHour,omitempty"`
	DayReminderTolerance  time.Duration `yaml:"dayReminderTolerance,omitempty"`
	HourReminderTolerance time.Duration `yaml:"hourReminderTolerance,omitempty"`
	PostVisitOffset       time.Duration `yaml:"postVisitOffset,omitempty"`
	Interval              time.Duration `yaml:"interval,omitempty"`

	// CleanupAfter is the age after which idempotency markers are removed
	CleanupAfter time.Duration `yaml:"cleanupAfter,omitempty"`

	// Templates maps a notification type to its message template
	Templates map[string]TemplateConfig `yaml:"templates,omitempty"`
}

// TemplateConfig is one message template
type TemplateConfig struct {
	Text   string `yaml:"text"`
	Active bool   `yaml:"active"`
}

// MessagingConfig defines the outbound messenger
type MessagingConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig defines the Telegram Bot API transport
type TelegramConfig struct {
	Token      string        `yaml:"token,omitempty"`
	TokenFile  string        `yaml:"tokenFile,omitempty"`
	APIBaseURL string        `yaml:"apiBaseURL,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// StorageConfig selects where persistent state lives
type StorageConfig struct {
	// Type is one of file, database or sqlite
	Type string `yaml:"type,omitempty"`

	// DataDir holds the snapshot, the last run and, for the file type,
	// the idempotency and channel-link files
	DataDir string `yaml:"dataDir,omitempty"`

	// SQLitePath is the database file for the sqlite type
	SQLitePath string `yaml:"sqlitePath,omitempty"`

	Database *DatabaseConfig `yaml:"database,omitempty"`
}

// LoadConfig loads, defaults and validates configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Platform.Timeout == 0 {
		c.Platform.Timeout = 30 * time.Second
	}
	if c.Platform.ClientsPageSize == 0 {
		c.Platform.ClientsPageSize = 100
	}
	if c.Platform.RecordsPageSize == 0 {
		c.Platform.RecordsPageSize = 100
	}

	if c.Sync.WindowPastDays == 0 {
		c.Sync.WindowPastDays = 90
	}
	if c.Sync.WindowFutureDays == 0 {
		c.Sync.WindowFutureDays = 14
	}
	if c.Sync.Retry.MaxAttempts == 0 {
		c.Sync.Retry.MaxAttempts = 3
	}
	if c.Sync.Retry.RateLimitDelay == 0 {
		c.Sync.Retry.RateLimitDelay = 5 * time.Second
	}
	if c.Sync.Retry.TransientDelay == 0 {
		c.Sync.Retry.TransientDelay = time.Second
	}
	if c.Sync.Retry.InterCallDelay == 0 {
		c.Sync.Retry.InterCallDelay = 200 * time.Millisecond
	}

	n := &c.Notifications
	if n.Timezone == "" {
		n.Timezone = "UTC"
	}
	if n.DayReminderHour == 0 {
		n.DayReminderHour = 10
	}
	if n.DayReminderTolerance == 0 {
		n.DayReminderTolerance = 5 * time.Minute
	}
	if n.HourReminderTolerance == 0 {
		n.HourReminderTolerance = 5 * time.Minute
	}
	if n.PostVisitOffset == 0 {
		n.PostVisitOffset = 2 * time.Hour
	}
	if n.Interval == 0 {
		n.Interval = time.Minute
	}
	if n.CleanupAfter == 0 {
		n.CleanupAfter = 72 * time.Hour
	}

	if c.Messaging.Telegram.APIBaseURL == "" {
		c.Messaging.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.Messaging.Telegram.Timeout == 0 {
		c.Messaging.Telegram.Timeout = 10 * time.Second
	}

	if c.Storage.Type == "" {
		c.Storage.Type = StorageTypeFile
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(c.Storage.DataDir, "booking-sync.db")
	}
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error
	if c.Platform.BaseURL == "" {
		errs = append(errs, errors.New("platform.baseURL is required"))
	}
	if c.Platform.CompanyID <= 0 {
		errs = append(errs, errors.New("platform.companyID must be positive"))
	}
	if c.Sync.MinVisits < 0 {
		errs = append(errs, errors.New("sync.minVisits cannot be negative"))
	}
	if c.Sync.Interval < 0 {
		errs = append(errs, errors.New("sync.interval cannot be negative"))
	}
	if c.Sync.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("sync.retry.maxAttempts cannot be negative"))
	}

	if _, err := time.LoadLocation(c.Notifications.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("notifications.timezone: %w", err))
	}
	if h := c.Notifications.DayReminderHour; h < 0 || h > 23 {
		errs = append(errs, fmt.Errorf("notifications.dayReminderHour must be between 0 and 23, got %d", h))
	}
	for name, tmpl := range c.Notifications.Templates {
		if tmpl.Active && tmpl.Text == "" {
			errs = append(errs, fmt.Errorf("notifications.templates.%s: active template needs text", name))
		}
	}

	switch c.Storage.Type {
	case StorageTypeFile, StorageTypeSQLite:
	case StorageTypeDatabase:
		if c.Storage.Database == nil {
			errs = append(errs, errors.New("storage.database is required for the database storage type"))
		} else if err := c.Storage.Database.validate(); err != nil {
			errs = append(errs, fmt.Errorf("storage.database: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be one of %s, %s or %s, got %q",
			StorageTypeFile, StorageTypeDatabase, StorageTypeSQLite, c.Storage.Type))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// Location returns the salon's time zone. The zone is validated on load.
func (n *NotificationsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(n.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetPartnerToken returns the platform partner token
func (p *PlatformConfig) GetPartnerToken() (string, error) {
	return readSecret("platform partner token", p.PartnerTokenFile, EnvPlatformPartnerToken, p.PartnerToken)
}

// GetUserToken returns the platform user token
func (p *PlatformConfig) GetUserToken() (string, error) {
	return readSecret("platform user token", p.UserTokenFile, EnvPlatformUserToken, p.UserToken)
}

// GetToken returns the Telegram bot token
func (t *TelegramConfig) GetToken() (string, error) {
	return readSecret("telegram token", t.TokenFile, EnvTelegramToken, t.Token)
}
