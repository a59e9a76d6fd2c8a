package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/salonhub/booking-sync/internal/notify"
	pkgsync "github.com/salonhub/booking-sync/internal/sync"
)

// Job names
const (
	SyncJobName     = "sync"
	DispatchJobName = "dispatch"
)

// SyncJob schedules a platform sync every interval. A tick that finds a run
// already active is skipped. Each iteration waits for its run to finish so
// that the next interval starts after it.
func SyncJob(orchestrator pkgsync.Orchestrator, interval time.Duration) Job {
	return Job{
		Name:     SyncJobName,
		Interval: interval,
		Run: func(ctx context.Context) error {
			handle, err := orchestrator.Start(ctx)
			if errors.Is(err, pkgsync.ErrConflict) {
				slog.DebugContext(ctx, "Scheduled sync skipped, a run is already active")
				return nil
			}
			if err != nil {
				return err
			}

			select {
			case <-handle.Done():
			case <-ctx.Done():
			}
			return nil
		},
	}
}

// DispatchJob runs a notification dispatch pass every interval. Dispatch
// failures are logged and reported in the summary, never fatal to the loop.
func DispatchJob(dispatcher notify.Dispatcher, interval time.Duration) Job {
	return Job{
		Name:     DispatchJobName,
		Interval: interval,
		Jitter:   time.Nanosecond,
		Run: func(ctx context.Context) error {
			summary := dispatcher.Dispatch(ctx)
			if !summary.OK {
				return fmt.Errorf("dispatch pass failed: %s", strings.Join(summary.Errors, "; "))
			}
			return nil
		},
	}
}
