package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	bookingapp "github.com/salonhub/booking-sync/internal/app"
	"github.com/salonhub/booking-sync/internal/config"
	"github.com/salonhub/booking-sync/internal/telemetry"
)

// defaultGracefulTimeout bounds the shutdown, including an active sync run
const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the booking sync API server",
		Long: `Start the API server together with the optional background jobs.

The configuration file (--config) specifies:
- how to reach the booking platform
- the sync window and retry policy (sync.interval enables periodic syncs)
- notification templates and timing (notifications.enabled starts the dispatch loop)
- the Telegram bot and the storage backend`,
		RunE: runServe,
	}

	cmd.Flags().String("address", ":8080", "Address to listen on")
	cmd.Flags().Bool("watch-config", true, "Reload message templates when the configuration file changes")
	addConfigFlag(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, err := newViper(cmd)
	if err != nil {
		return err
	}
	configPath, err := requireConfigPath(v)
	if err != nil {
		return err
	}
	address := v.GetString("address")

	manager, err := config.NewManager(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			slog.Error("Failed to close config manager", "error", err)
		}
	}()
	cfg := manager.GetConfig()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := newTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(tel)

	bookingApp, err := bookingapp.NewBookingApp(ctx,
		bookingapp.WithConfigManager(manager),
		bookingapp.WithAddress(address),
		bookingapp.WithMeterProvider(tel.MeterProvider()),
		bookingapp.WithTracerProvider(tel.TracerProvider()),
		bookingapp.WithMetricsHandler(tel.MetricsHandler()),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	slog.Info("Starting booking sync server", "address", address, "storage", cfg.Storage.Type)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bookingApp.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return bookingApp.Stop(defaultGracefulTimeout)
	})
	if v.GetBool("watch-config") {
		g.Go(func() error {
			// Template reloading is best effort; a watcher failure leaves the
			// loaded configuration in place
			if err := manager.WatchConfig(gctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Configuration watcher stopped", "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func newTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return tel, nil
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		slog.Error("Failed to shut down telemetry", "error", err)
	}
}
