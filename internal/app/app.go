// Package app provides application lifecycle management for the booking sync server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/salonhub/booking-sync/internal/config"
)

// BookingApp encapsulates all components needed to run the booking sync server.
// It provides lifecycle management and graceful shutdown capabilities
type BookingApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server
}

// Start starts the application components (HTTP server and background jobs).
// It blocks until the HTTP server stops or encounters an error. The
// background jobs run until ctx is cancelled or Stop is called.
func (app *BookingApp) Start(ctx context.Context) error {
	go func() {
		if err := app.components.Coordinator.Start(ctx); err != nil {
			slog.Error("Background coordinator failed", "error", err)
		}
	}()

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// It stops the background jobs, shuts down the HTTP server, waits for an
// active sync run and finally releases storage.
func (app *BookingApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	if err := app.components.Coordinator.Stop(); err != nil {
		slog.Error("Failed to stop background coordinator", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := app.httpServer.Shutdown(shutdownCtx)
	app.components.Close(shutdownCtx)
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *BookingApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *BookingApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the application components
func (app *BookingApp) Components() *AppComponents {
	return app.components
}
