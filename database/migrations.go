// Package database provides the embedded schema migrations for the
// PostgreSQL and SQLite storage backends.
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5 scheme
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

const (
	postgresDir = "migrations/postgres"
	sqliteDir   = "migrations/sqlite"
)

// migrationsFromSource returns a migration source driver over one embedded directory
func migrationsFromSource(dir string) (source.Driver, error) {
	d, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return d, nil
}

// Migrator is the interface for the migration tooling
type Migrator interface {
	Up() error
	Down() error
	Steps(int) error
	Version() (uint, bool, error)
	Close() (source error, database error)
}

// NewFromConnectionString returns a PostgreSQL migrator. Both postgres://
// and pgx5:// URLs are accepted.
func NewFromConnectionString(connString string) (Migrator, error) {
	d, err := migrationsFromSource(postgresDir)
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", d, toPgx5URL(connString))
}

// NewSQLite returns a migrator for an open SQLite database. The migrator
// must not be closed while conn is still in use, since closing it closes conn.
func NewSQLite(conn *sql.DB) (Migrator, error) {
	d, err := migrationsFromSource(sqliteDir)
	if err != nil {
		return nil, err
	}
	driver, err := migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", d, "sqlite", driver)
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func Up(m Migrator) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func toPgx5URL(connString string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(connString, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return connString
}
