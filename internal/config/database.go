package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// DatabaseConfig defines PostgreSQL connection settings
type DatabaseConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`

	// PasswordFile should contain only the password; surrounding whitespace is trimmed
	PasswordFile string `yaml:"passwordFile,omitempty"`

	Database string `yaml:"database"`

	// SSLMode is one of disable, require, verify-ca or verify-full
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxConns is the maximum pool size
	MaxConns int32 `yaml:"maxConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a pooled connection
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime,omitempty"`
}

func (d *DatabaseConfig) validate() error {
	var errs []error
	if d.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if d.Port <= 0 {
		errs = append(errs, errors.New("port must be positive"))
	}
	if d.User == "" {
		errs = append(errs, errors.New("user is required"))
	}
	if d.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	return errors.Join(errs...)
}

// GetPassword returns the database password, read from PasswordFile or
// the BOOKING_SYNC_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	return readSecret("database password", d.PasswordFile, EnvDatabasePassword, "")
}

// GetConnectionString builds a PostgreSQL URL. The password is URL-escaped.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}
	return d.ConnectionStringWithPassword(password), nil
}

// ConnectionStringWithPassword builds a PostgreSQL URL with an explicitly
// supplied password
func (d *DatabaseConfig) ConnectionStringWithPassword(password string) string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Database,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}
