package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job is a unit of periodic background work
type Job struct {
	// Name identifies the job in logs
	Name string
	// Interval is the base time between runs
	Interval time.Duration
	// Jitter is the maximum random offset applied to each interval.
	// Zero means a tenth of Interval.
	Jitter time.Duration
	// SkipInitialRun disables the run performed when the coordinator starts
	SkipInitialRun bool
	// Run performs one iteration. Errors are logged.
	Run func(ctx context.Context) error
}

// Coordinator manages the background job loops
type Coordinator interface {
	// Start runs every job loop. Blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop cancels the job loops and waits for Start to return
	Stop() error
}

type defaultCoordinator struct {
	jobs []Job

	mu         gosync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a coordinator for jobs
func New(jobs []Job) Coordinator {
	return &defaultCoordinator{
		jobs: jobs,
		done: make(chan struct{}),
	}
}

// calculateInterval returns base with a random offset in [-jitter, +jitter)
func calculateInterval(base, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		jitter = base / 10
	}
	if jitter <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	if interval := base + offset; interval > 0 {
		return interval
	}
	return base
}

func (c *defaultCoordinator) Start(ctx context.Context) error {
	for _, job := range c.jobs {
		if job.Interval <= 0 || job.Run == nil {
			return errors.New("coordinator: job " + job.Name + " needs a positive interval and a run function")
		}
	}

	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Background coordinator shut down")
	}()

	slog.Info("Starting background coordinator", "job_count", len(c.jobs))

	g, gctx := errgroup.WithContext(coordCtx)
	for _, job := range c.jobs {
		g.Go(func() error {
			runLoop(gctx, job)
			return nil
		})
	}
	return g.Wait()
}

func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping background coordinator")
		cancel()
		<-c.done
	}
	return nil
}

func runLoop(ctx context.Context, job Job) {
	interval := calculateInterval(job.Interval, job.Jitter)
	slog.Info("Configured job interval",
		"job", job.Name,
		"base_interval", job.Interval,
		"actual_interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if !job.SkipInitialRun {
		runOnce(ctx, job)
	}

	for {
		select {
		case <-ticker.C:
			runOnce(ctx, job)
			ticker.Reset(calculateInterval(job.Interval, job.Jitter))
		case <-ctx.Done():
			slog.Debug("Job loop stopping", "job", job.Name)
			return
		}
	}
}

func runOnce(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Background job panicked", "job", job.Name, "panic", r)
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.ErrorContext(ctx, "Background job failed",
			"job", job.Name,
			"duration", time.Since(start),
			"error", err)
		return
	}
	slog.DebugContext(ctx, "Background job completed", "job", job.Name, "duration", time.Since(start))
}
