package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/otel"
	"github.com/salonhub/booking-sync/internal/platform"
	"github.com/salonhub/booking-sync/internal/retry"
	"github.com/salonhub/booking-sync/internal/state"
	"github.com/salonhub/booking-sync/internal/status"
	"github.com/salonhub/booking-sync/internal/telemetry"
)

// ErrConflict is returned by Start while another run is active
var ErrConflict = errors.New("sync run already in progress")

const (
	// DefaultWindowPastDays is how far back bookings are fetched
	DefaultWindowPastDays = 90
	// DefaultWindowFutureDays is how far ahead bookings are fetched
	DefaultWindowFutureDays = 14

	// unexpectedFailureMessage is recorded when a run dies outside its phases
	unexpectedFailureMessage = "unexpected failure during sync"
)

// Config configures the orchestrator
type Config struct {
	// MinVisits is the visit threshold below which a client counts as skipped
	MinVisits int
	// WindowPastDays and WindowFutureDays bound the bookings fetch window
	WindowPastDays   int
	WindowFutureDays int
	// ClientsPageSize and RecordsPageSize are the pagination page sizes
	ClientsPageSize int
	RecordsPageSize int
	// Location is the salon's timezone, used to compute "today"
	Location *time.Location
}

// RunHandle identifies a started run
type RunHandle struct {
	ID   string
	done <-chan struct{}
}

// NewRunHandle creates a handle for run id whose completion is signalled by
// closing done
func NewRunHandle(id string, done <-chan struct{}) *RunHandle {
	return &RunHandle{ID: id, done: done}
}

// Done is closed when the run has finished and its final status is stored
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Orchestrator runs syncs from the booking platform into the state store
//
//go:generate mockgen -destination=mocks/mock_orchestrator.go -package=mocks -source=orchestrator.go Orchestrator
type Orchestrator interface {
	// Start launches a run in the background and returns immediately.
	// It returns ErrConflict if a run is already active.
	Start(ctx context.Context) (*RunHandle, error)
	// Shutdown waits for an active run to finish or ctx to expire
	Shutdown(ctx context.Context) error
}

// Option configures the orchestrator
type Option func(*orchestrator)

// WithSyncMetrics sets the sync metrics
func WithSyncMetrics(m *telemetry.SyncMetrics) Option {
	return func(o *orchestrator) {
		o.metrics = m
	}
}

// WithTracer sets the tracer used for run and phase spans
func WithTracer(t trace.Tracer) Option {
	return func(o *orchestrator) {
		o.tracer = t
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *orchestrator) {
		o.now = now
	}
}

// WithIDGenerator overrides the run id generator
func WithIDGenerator(gen func() string) Option {
	return func(o *orchestrator) {
		o.newID = gen
	}
}

type orchestrator struct {
	client platform.Client
	exec   *retry.Executor
	store  state.Store
	cfg    Config

	metrics *telemetry.SyncMetrics
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string

	wg gosync.WaitGroup
}

// NewOrchestrator creates an orchestrator. client calls are wrapped by exec,
// so client itself should not retry.
func NewOrchestrator(
	client platform.Client,
	exec *retry.Executor,
	store state.Store,
	cfg Config,
	opts ...Option,
) Orchestrator {
	if cfg.WindowPastDays <= 0 {
		cfg.WindowPastDays = DefaultWindowPastDays
	}
	if cfg.WindowFutureDays <= 0 {
		cfg.WindowFutureDays = DefaultWindowFutureDays
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	o := &orchestrator{
		client: client,
		exec:   exec,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *orchestrator) Start(ctx context.Context) (*RunHandle, error) {
	id := o.newID()
	startedAt := o.now()

	started, err := o.store.UpdateRunAtomically(ctx, func(run *status.SyncRun) bool {
		if run.IsRunning() {
			return false
		}
		*run = status.SyncRun{
			ID:        id,
			StartedAt: startedAt,
			Status:    status.RunStatusRunning,
			Phase:     status.PhaseStaff,
		}
		return true
	})
	if !started {
		if err != nil {
			return nil, fmt.Errorf("failed to start sync run: %w", err)
		}
		return nil, ErrConflict
	}
	if err != nil {
		slog.WarnContext(ctx, "Sync run started without persisted status", "run_id", id, "error", err)
	}

	done := make(chan struct{})
	handle := NewRunHandle(id, done)

	// The run outlives the triggering request; it carries the request's
	// values but not its cancellation.
	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(done)
		o.execute(runCtx, id, startedAt)
	}()

	slog.InfoContext(ctx, "Sync run started", "run_id", id)
	return handle, nil
}

func (o *orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sync run still active at shutdown: %w", ctx.Err())
	}
}

// runOutcome is filled in by the run and consumed by finish
type runOutcome struct {
	status         status.RunStatus
	errorMessage   string
	errors         []string
	classification Classification
}

// execute runs the four fetch phases and the derived metrics pass. Whatever
// happens, the accumulated snapshot is published and the run is finished.
func (o *orchestrator) execute(ctx context.Context, runID string, startedAt time.Time) {
	ctx, span := otel.StartSpan(ctx, o.tracer, "sync.run",
		trace.WithAttributes(otel.AttrRunID.String(runID)))
	defer span.End()

	acc := &booking.Snapshot{}
	outcome := &runOutcome{
		status:       status.RunStatusError,
		errorMessage: unexpectedFailureMessage,
	}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Sync run panicked", "run_id", runID, "panic", r)
			outcome.status = status.RunStatusError
			outcome.errorMessage = fmt.Sprintf("%s: %v", unexpectedFailureMessage, r)
		}
		if outcome.status == status.RunStatusError {
			otel.RecordError(span, errors.New(outcome.errorMessage))
		}
		o.finish(ctx, runID, startedAt, acc, outcome)
	}()

	previous, err := o.store.Snapshot(ctx)
	if err != nil && !errors.Is(err, state.ErrNoSnapshot) {
		outcome.errorMessage = fmt.Sprintf("failed to read previous snapshot: %v", err)
		return
	}

	o.runPhase(ctx, runID, status.PhaseStaff, outcome, func(ctx context.Context) error {
		staff, err := retry.Execute(ctx, o.exec, "list staff", o.client.ListStaff)
		acc.Staff = staff
		o.reportProgress(ctx, runID, func(p *status.Progress) { p.Staff = len(staff) })
		return err
	})

	o.runPhase(ctx, runID, status.PhaseServices, outcome, func(ctx context.Context) error {
		services, err := retry.Execute(ctx, o.exec, "list services", o.client.ListServices)
		acc.Services = services
		o.reportProgress(ctx, runID, func(p *status.Progress) { p.Services = len(services) })
		return err
	})

	o.runPhase(ctx, runID, status.PhaseClients, outcome, func(ctx context.Context) error {
		clients, err := FetchAll[booking.Client](ctx, o.exec, "list clients", FetchOptions{
			PageSize: o.cfg.ClientsPageSize,
			OnPage: func(total int) {
				o.reportProgress(ctx, runID, func(p *status.Progress) { p.Clients = total })
			},
		}, o.client.ListClients)
		acc.Clients = clients
		return err
	})

	start, end := o.recordsWindow()
	o.runPhase(ctx, runID, status.PhaseRecords, outcome, func(ctx context.Context) error {
		records, err := FetchAll[booking.Record](ctx, o.exec, "list records", FetchOptions{
			PageSize:        o.cfg.RecordsPageSize,
			StopOnShortPage: true,
			OnPage: func(total int) {
				o.reportProgress(ctx, runID, func(p *status.Progress) { p.Records = total })
			},
		}, func(ctx context.Context, page, pageSize int) ([]booking.Record, error) {
			return o.client.ListRecords(ctx, platform.RecordQuery{
				Page:      page,
				Count:     pageSize,
				StartDate: start,
				EndDate:   end,
			})
		})
		acc.Records = records
		return err
	})

	o.setPhase(ctx, runID, status.PhaseMetrics)
	outcome.classification = ApplyDerivedMetrics(acc.Clients, acc.Records, previous, o.cfg.MinVisits)

	if len(outcome.errors) == 0 {
		outcome.status = status.RunStatusSuccess
	} else {
		outcome.status = status.RunStatusPartial
	}
	outcome.errorMessage = ""
}

// runPhase executes one phase. A failure, including a panic, is appended to
// the outcome's errors and never stops later phases.
func (o *orchestrator) runPhase(
	ctx context.Context,
	runID string,
	phase status.Phase,
	outcome *runOutcome,
	fn func(ctx context.Context) error,
) {
	o.setPhase(ctx, runID, phase)

	ctx, span := otel.StartSpan(ctx, o.tracer, "sync.phase."+string(phase),
		trace.WithAttributes(otel.AttrSyncPhase.String(string(phase))))
	defer span.End()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(ctx)
	}()
	if err == nil {
		return
	}

	otel.RecordError(span, err)
	slog.ErrorContext(ctx, "Sync phase failed",
		"run_id", runID,
		"phase", phase,
		"error", err)
	outcome.errors = append(outcome.errors, fmt.Sprintf("%s: %v", phase, err))
	o.metrics.RecordPhaseFailure(ctx, string(phase), retry.KindOf(err).String())
}

// recordsWindow returns the first and last day of the bookings fetch window
func (o *orchestrator) recordsWindow() (time.Time, time.Time) {
	now := o.now().In(o.cfg.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, o.cfg.Location)
	return today.AddDate(0, 0, -o.cfg.WindowPastDays), today.AddDate(0, 0, o.cfg.WindowFutureDays)
}

func (o *orchestrator) setPhase(ctx context.Context, runID string, phase status.Phase) {
	o.updateRun(ctx, runID, func(run *status.SyncRun) {
		run.Phase = phase
	})
}

func (o *orchestrator) reportProgress(ctx context.Context, runID string, fn func(*status.Progress)) {
	o.updateRun(ctx, runID, func(run *status.SyncRun) {
		fn(&run.Progress)
	})
}

// updateRun mutates the stored run if it is still the given one
func (o *orchestrator) updateRun(ctx context.Context, runID string, fn func(*status.SyncRun)) {
	_, err := o.store.UpdateRunAtomically(ctx, func(run *status.SyncRun) bool {
		if run.ID != runID {
			return false
		}
		fn(run)
		return true
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to update sync run", "run_id", runID, "error", err)
	}
}

// finish publishes the accumulated snapshot and records the terminal status
func (o *orchestrator) finish(
	ctx context.Context,
	runID string,
	startedAt time.Time,
	acc *booking.Snapshot,
	outcome *runOutcome,
) {
	finishedAt := o.now()
	acc.LastSyncAt = &finishedAt

	if outcome.status == status.RunStatusError {
		slog.WarnContext(ctx, "Publishing best-effort snapshot from failed sync run",
			"run_id", runID,
			"error", outcome.errorMessage)
	}
	if err := o.store.PublishSnapshot(ctx, acc); err != nil {
		slog.ErrorContext(ctx, "Failed to publish snapshot", "run_id", runID, "error", err)
	}

	o.updateRun(ctx, runID, func(run *status.SyncRun) {
		run.Status = outcome.status
		run.Phase = status.PhaseFinished
		run.FinishedAt = &finishedAt
		run.Errors = outcome.errors
		run.ErrorMessage = outcome.errorMessage
		run.Created = outcome.classification.Created
		run.Updated = outcome.classification.Updated
		run.Skipped = outcome.classification.Skipped
	})

	o.metrics.RecordSyncDuration(ctx, string(outcome.status), finishedAt.Sub(startedAt))
	o.metrics.RecordSnapshotItems(ctx, map[string]int{
		"staff":    len(acc.Staff),
		"services": len(acc.Services),
		"clients":  len(acc.Clients),
		"records":  len(acc.Records),
	})

	slog.InfoContext(ctx, "Sync run finished",
		"run_id", runID,
		"status", outcome.status,
		"duration", finishedAt.Sub(startedAt),
		"staff", len(acc.Staff),
		"services", len(acc.Services),
		"clients", len(acc.Clients),
		"records", len(acc.Records),
		"created", outcome.classification.Created,
		"updated", outcome.classification.Updated,
		"skipped", outcome.classification.Skipped,
		"errors", len(outcome.errors))
}
