package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	bookingapp "github.com/salonhub/booking-sync/internal/app"
	"github.com/salonhub/booking-sync/internal/status"
)

// errRunFailed is returned when a foreground sync finishes with status error
var errRunFailed = errors.New("sync run failed")

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one platform sync",
		Long: `Run one sync from the booking platform into the local snapshot.

With --wait the command stays in the foreground until the run finishes and
prints its final status. A partial run exits successfully; a failed run does not.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, v, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runSync(cmd.Context(), cmd.OutOrStdout(), v.GetBool("wait"), v.GetDuration("timeout"),
				bookingapp.WithConfig(cfg))
		},
	}

	addConfigFlag(cmd)
	cmd.Flags().Bool("wait", false, "Wait for the run to finish and print its status")
	cmd.Flags().Duration("timeout", 30*time.Minute, "Maximum time to wait with --wait")
	return cmd
}

func newDispatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run one notification dispatch pass",
		Long: `Evaluate the reminder and post-visit windows once against the current
snapshot, send what is due and print the JSON summary.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runDispatch(cmd.Context(), cmd.OutOrStdout(), bookingapp.WithConfig(cfg))
		},
	}

	addConfigFlag(cmd)
	return cmd
}

// runSync starts a run and, when wait is set, prints its final status
func runSync(ctx context.Context, out io.Writer, wait bool, timeout time.Duration, opts ...bookingapp.BookingAppOptions) error {
	components, err := bookingapp.BuildComponents(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build components: %w", err)
	}
	defer components.Close(context.Background())

	handle, err := components.Orchestrator.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start sync: %w", err)
	}
	slog.Info("Sync run started", "run_id", handle.ID)

	if !wait {
		return writeJSON(out, map[string]string{"runId": handle.ID})
	}

	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-handle.Done():
	case <-timer.C:
		return fmt.Errorf("sync run %s did not finish within %s", handle.ID, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	run, err := components.Store.CurrentRun(ctx)
	if err != nil {
		return fmt.Errorf("failed to read sync status: %w", err)
	}
	if err := writeJSON(out, run); err != nil {
		return err
	}
	if run != nil && run.Status == status.RunStatusError {
		return fmt.Errorf("%w: %s", errRunFailed, run.ErrorMessage)
	}
	return nil
}

// runDispatch runs one dispatch pass and prints the summary
func runDispatch(ctx context.Context, out io.Writer, opts ...bookingapp.BookingAppOptions) error {
	components, err := bookingapp.BuildComponents(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build components: %w", err)
	}
	defer components.Close(context.Background())

	summary := components.Dispatcher.Dispatch(ctx)
	if err := writeJSON(out, summary); err != nil {
		return err
	}
	if !summary.OK {
		return errors.New("dispatch pass failed")
	}
	return nil
}
