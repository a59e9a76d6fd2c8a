// Package app provides the commands of the booking sync binary.
package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/salonhub/booking-sync/internal/config"
	"github.com/salonhub/booking-sync/internal/versions"
)

// LogLevel is the level of the process logger. The --debug flag lowers it.
var LogLevel = new(slog.LevelVar)

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "booking-sync",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Booking platform sync and client notification server",
		Long: `booking-sync mirrors staff, services, clients and bookings from the booking
platform into a local snapshot, and sends booking reminders and post-visit
messages to clients through Telegram.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			if v.GetBool("debug") {
				LogLevel.Set(slog.LevelDebug)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newDispatchCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newViper binds the command's flags and BOOKING_SYNC_* environment
// variables. Flags take precedence over the environment.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}

// loadConfig loads the configuration file named by --config or BOOKING_SYNC_CONFIG
func loadConfig(cmd *cobra.Command) (*config.Config, *viper.Viper, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, nil, err
	}

	configPath, err := requireConfigPath(v)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", configPath, "storage", cfg.Storage.Type)
	return cfg, v, nil
}

func requireConfigPath(v *viper.Viper) (string, error) {
	configPath := v.GetString("config")
	if configPath == "" {
		return "", fmt.Errorf("a configuration file is required (--config or %s_CONFIG)", config.EnvPrefix)
	}
	return configPath, nil
}

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			active := make([]string, 0, len(cfg.Notifications.Templates))
			for name, tmpl := range cfg.Notifications.Templates {
				if tmpl.Active {
					active = append(active, name)
				}
			}
			slices.Sort(active)

			out := cmd.OutOrStdout()
			_, err = fmt.Fprintf(out, "Valid configuration\n  Company: %d\n  Storage: %s\n  Timezone: %s\n  Active templates: %s\n",
				cfg.Platform.CompanyID, cfg.Storage.Type, cfg.Notifications.Timezone, strings.Join(active, ", "))
			return err
		},
	}
	addConfigFlag(cmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
