package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/salonhub/booking-sync/database"
	"github.com/salonhub/booking-sync/internal/config"
	"github.com/salonhub/booking-sync/internal/db"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long: `Database migration tool for managing schema versions of the database and
sqlite storage types. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply pending migrations to bring the schema up to date. The target database
is read from the storage section of the config file.`,
		RunE: runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  booking-sync migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: drops sent-notification and channel-link tables)
  booking-sync migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	})
	return cmd
}

// openMigrator returns a migrator for the configured storage backend
func openMigrator(ctx context.Context, cfg *config.Config) (database.Migrator, string, error) {
	switch cfg.Storage.Type {
	case config.StorageTypeDatabase:
		if cfg.Storage.Database == nil {
			return nil, "", fmt.Errorf("database configuration is required")
		}
		connString, err := databaseConnectionString(cfg.Storage.Database)
		if err != nil {
			return nil, "", err
		}
		m, err := database.NewFromConnectionString(connString)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create migrator: %w", err)
		}
		d := cfg.Storage.Database
		return m, fmt.Sprintf("%s@%s:%d/%s", d.User, d.Host, d.Port, d.Database), nil
	case config.StorageTypeSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		m, err := database.NewSQLite(conn)
		if err != nil {
			_ = conn.Close()
			return nil, "", fmt.Errorf("failed to create migrator: %w", err)
		}
		return m, cfg.Storage.SQLitePath, nil
	default:
		return nil, "", fmt.Errorf("storage type %q has no schema to migrate", cfg.Storage.Type)
	}
}

// databaseConnectionString falls back to prompting for the password when
// none is configured and stdin is a terminal
func databaseConnectionString(d *config.DatabaseConfig) (string, error) {
	connString, err := d.GetConnectionString()
	if err == nil {
		return connString, nil
	}
	if d.PasswordFile != "" || !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
		return "", fmt.Errorf("failed to build connection string: %w", err)
	}

	password, err := readPasswordFromTerminal(fmt.Sprintf("Password for %s@%s: ", d.User, d.Host))
	if err != nil {
		return "", err
	}
	return d.ConnectionStringWithPassword(password), nil
}

func readPasswordFromTerminal(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(passwordBytes) == 0 {
		return "", errors.New("password cannot be empty")
	}
	return string(passwordBytes), nil
}

func closeMigrator(m database.Migrator) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		slog.Error("Error closing migrator", "error", err)
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, v, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	m, target, err := openMigrator(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if !v.GetBool("yes") && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
		fmt.Sprintf("About to apply migrations to %s. Continue?", target)) {
		slog.Info("Migration cancelled by user")
		return nil
	}

	return executeMigrateUp(m, v.GetUint("num-steps"))
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	cfg, v, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	m, target, err := openMigrator(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	numSteps := v.GetUint("num-steps")
	if !v.GetBool("yes") {
		prompt := fmt.Sprintf("WARNING: This will migrate %s down %d step(s) and may result in data loss. Continue?",
			target, numSteps)
		if numSteps == 0 {
			prompt = fmt.Sprintf("WARNING: This will migrate %s down ALL steps and may result in complete data loss. Continue?",
				target)
		}
		if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
			slog.Info("Migration cancelled")
			return fmt.Errorf("migration cancelled by user")
		}
	}

	return executeMigrateDown(m, numSteps)
}

func executeMigrateUp(m database.Migrator, numSteps uint) error {
	var err error
	if numSteps == 0 {
		slog.Info("Applying database migrations...")
		err = m.Up()
	} else {
		if numSteps > math.MaxInt {
			return fmt.Errorf("number of steps exceeds maximum allowed value")
		}
		slog.Info("Applying database migrations", "steps", numSteps)
		err = m.Steps(int(numSteps)) // #nosec G115 -- overflow checked above
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	displayMigrationVersion(m)
	return nil
}

func executeMigrateDown(m database.Migrator, numSteps uint) error {
	var err error
	if numSteps == 0 {
		slog.Warn("Migrating down all steps - this will remove all schema!")
		err = m.Down()
	} else {
		if numSteps > math.MaxInt {
			return fmt.Errorf("number of steps exceeds maximum allowed value")
		}
		slog.Info("Migrating down", "steps", numSteps)
		err = m.Steps(-1 * int(numSteps)) // #nosec G115 -- overflow checked above
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No migrations to revert - database is already at the oldest version")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("Migration completed successfully")
	displayMigrationVersion(m)
	return nil
}

func displayMigrationVersion(m database.Migrator) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		slog.Info("Database schema is empty")
	case err != nil:
		slog.Warn("Unable to get migration version", "error", err)
	case dirty:
		slog.Warn("Database is in a dirty state, manual intervention may be required", "version", version)
	default:
		slog.Info("Current migration version", "version", version)
	}
}

// confirm asks a yes/no question and reports whether the answer was yes
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	if _, err := fmt.Fprintf(out, "%s (yes/no): ", prompt); err != nil {
		return false
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "yes" || response == "y"
}
