package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/idempotency"
	"github.com/salonhub/booking-sync/internal/messaging"
	"github.com/salonhub/booking-sync/internal/notify/directory"
	"github.com/salonhub/booking-sync/internal/otel"
	"github.com/salonhub/booking-sync/internal/state"
	"github.com/salonhub/booking-sync/internal/telemetry"
)

const (
	// DefaultTolerance is the default day and hour reminder tolerance
	DefaultTolerance = 5 * time.Minute
	// DefaultPostVisitOffset is how long after a visit the follow-up is sent
	DefaultPostVisitOffset = 2 * time.Hour
	// DefaultCleanupAfter is the age after which idempotency markers are removed
	DefaultCleanupAfter = 72 * time.Hour
)

// Config configures the dispatcher
type Config struct {
	SalonName string
	// Location is the salon's timezone; "now" and offset-less record
	// datetimes are evaluated in it
	Location              *time.Location
	DayReminderHour       int
	DayReminderTolerance  time.Duration
	HourReminderTolerance time.Duration
	PostVisitOffset       time.Duration
	CleanupAfter          time.Duration
}

// Option configures the dispatcher
type Option func(*dispatcher)

// WithDispatchMetrics sets the dispatch metrics
func WithDispatchMetrics(m *telemetry.DispatchMetrics) Option {
	return func(d *dispatcher) {
		d.metrics = m
	}
}

// WithTracer sets the tracer used for dispatch spans
func WithTracer(t trace.Tracer) Option {
	return func(d *dispatcher) {
		d.tracer = t
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(d *dispatcher) {
		d.now = now
	}
}

type dispatcher struct {
	store     state.Store
	sent      idempotency.Store
	templates TemplateRegistry
	links     directory.Directory
	transport messaging.Transport
	cfg       Config

	metrics *telemetry.DispatchMetrics
	tracer  trace.Tracer
	now     func() time.Time

	// serializes passes triggered by the ticker and by the HTTP endpoint
	mu gosync.Mutex
}

// NewDispatcher creates a dispatcher. Zero durations are replaced by the
// defaults; DayReminderHour is used as given.
func NewDispatcher(
	store state.Store,
	sent idempotency.Store,
	templates TemplateRegistry,
	links directory.Directory,
	transport messaging.Transport,
	cfg Config,
	opts ...Option,
) Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DayReminderTolerance <= 0 {
		cfg.DayReminderTolerance = DefaultTolerance
	}
	if cfg.HourReminderTolerance <= 0 {
		cfg.HourReminderTolerance = DefaultTolerance
	}
	if cfg.PostVisitOffset <= 0 {
		cfg.PostVisitOffset = DefaultPostVisitOffset
	}
	if cfg.CleanupAfter <= 0 {
		cfg.CleanupAfter = DefaultCleanupAfter
	}

	d := &dispatcher{
		store:     store,
		sent:      sent,
		templates: templates,
		links:     links,
		transport: transport,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *dispatcher) Dispatch(ctx context.Context) Summary {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	summary := Summary{OK: true, Timestamp: now, Errors: []string{}}

	ctx, span := otel.StartSpan(ctx, d.tracer, "notify.dispatch")
	defer span.End()
	defer func() {
		d.metrics.RecordDuration(ctx, d.now().Sub(now))
	}()

	snap, err := d.store.Snapshot(ctx)
	switch {
	case errors.Is(err, state.ErrNoSnapshot):
		slog.InfoContext(ctx, "No snapshot published yet, nothing to dispatch")
	case err != nil:
		otel.RecordError(span, err)
		summary.OK = false
		summary.Errors = append(summary.Errors, fmt.Sprintf("read snapshot: %v", err))
	default:
		w := newWindows(now, d.cfg)
		for _, t := range Types {
			d.dispatchType(ctx, snap, w, t, &summary)
		}
	}

	cleaned, err := d.sent.Cleanup(ctx, now.Add(-d.cfg.CleanupAfter))
	if err != nil {
		otel.RecordError(span, err)
		summary.OK = false
		summary.Errors = append(summary.Errors, fmt.Sprintf("cleanup: %v", err))
	}
	summary.Cleaned = cleaned
	d.metrics.RecordCleaned(ctx, cleaned)

	for _, t := range Types {
		c := summary.Results.of(t)
		d.metrics.RecordOutcome(ctx, string(t), "sent", c.Sent)
		d.metrics.RecordOutcome(ctx, string(t), "skipped", c.Skipped)
		d.metrics.RecordOutcome(ctx, string(t), "failed", c.Failed)
	}

	slog.InfoContext(ctx, "Notification dispatch finished",
		"day_sent", summary.Results.ReminderDay.Sent,
		"hour_sent", summary.Results.ReminderHour.Sent,
		"post_visit_sent", summary.Results.PostVisit.Sent,
		"failed", summary.Results.ReminderDay.Failed+summary.Results.ReminderHour.Failed+summary.Results.PostVisit.Failed,
		"cleaned", summary.Cleaned,
		"errors", len(summary.Errors))
	return summary
}

func (d *dispatcher) dispatchType(ctx context.Context, snap *booking.Snapshot, w windows, t Type, summary *Summary) {
	candidates := w.candidates(snap, t)
	if len(candidates) == 0 {
		return
	}

	ctx, span := otel.StartSpan(ctx, d.tracer, "notify.dispatch."+string(t),
		trace.WithAttributes(
			otel.AttrNotificationType.String(string(t)),
			otel.AttrResultCount.Int(len(candidates)),
		))
	defer span.End()

	counts := summary.Results.of(t)
	for _, c := range candidates {
		switch err := d.deliver(ctx, snap, t, c); {
		case err == nil:
			counts.Sent++
		case errors.Is(err, errSkipped):
			counts.Skipped++
		case errors.Is(err, errMarkFailed):
			// delivered but not recorded; the next pass may send it again
			counts.Sent++
			summary.Errors = append(summary.Errors, err.Error())
		default:
			counts.Failed++
			var storeErr *storeError
			if errors.As(err, &storeErr) {
				summary.Errors = append(summary.Errors, err.Error())
			}
		}
	}
}

var (
	errSkipped    = errors.New("skipped")
	errMarkFailed = errors.New("delivered but not marked sent")
)

// storeError is a failure of a collaborator other than the transport
type storeError struct {
	err error
}

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

// deliver processes one candidate. It returns nil when the message was sent
// and marked, errSkipped when a skip condition applies, and any other error
// when the candidate stays eligible for the next pass.
func (d *dispatcher) deliver(ctx context.Context, snap *booking.Snapshot, t Type, c candidate) error {
	log := slog.With("record_id", c.record.ID, "type", t)

	sent, err := d.sent.IsSent(ctx, c.key)
	if err != nil {
		log.ErrorContext(ctx, "Failed to check idempotency store", "error", err)
		return &storeError{err: err}
	}
	if sent {
		return errSkipped
	}

	tmpl, found, err := d.templates.Template(ctx, t)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load template", "error", err)
		return &storeError{err: fmt.Errorf("template %s: %w", t, err)}
	}
	if !found || !tmpl.Active || tmpl.Text == "" {
		log.DebugContext(ctx, "Template missing or inactive")
		return errSkipped
	}

	phone := c.record.Client.Phone
	if phone == "" {
		if client, ok := snap.ClientByID(c.record.Client.ID); ok {
			phone = client.Phone
		}
	}
	if phone == "" {
		return errSkipped
	}
	chatID, linked, err := d.links.Lookup(ctx, phone)
	if err != nil {
		log.ErrorContext(ctx, "Failed to look up channel link", "error", err)
		return &storeError{err: fmt.Errorf("channel link for record %d: %w", c.record.ID, err)}
	}
	if !linked {
		log.DebugContext(ctx, "Client has no linked channel")
		return errSkipped
	}

	text := render(tmpl.Text, newRenderData(snap, c.record, c.at, d.cfg.SalonName))
	if err := d.transport.Send(ctx, chatID, text); err != nil {
		log.WarnContext(ctx, "Notification delivery failed", "error", err)
		return err
	}

	if err := d.sent.MarkSent(ctx, c.key, d.now()); err != nil {
		log.ErrorContext(ctx, "Failed to mark notification sent", "error", err)
		return fmt.Errorf("%w: %s: %v", errMarkFailed, c.key, err)
	}
	log.InfoContext(ctx, "Notification sent")
	return nil
}

func (d *dispatcher) Broadcast(ctx context.Context, phones []string, text string) (BroadcastResult, error) {
	if text == "" {
		return BroadcastResult{}, errors.New("broadcast text is required")
	}

	if len(phones) == 0 {
		snap, err := d.store.Snapshot(ctx)
		if err != nil {
			return BroadcastResult{}, fmt.Errorf("failed to read snapshot: %w", err)
		}
		for _, c := range snap.Clients {
			if c.Phone != "" {
				phones = append(phones, c.Phone)
			}
		}
	}

	var result BroadcastResult
	seen := make(map[string]struct{}, len(phones))
	chatIDs := make([]string, 0, len(phones))
	for _, phone := range phones {
		chatID, linked, err := d.links.Lookup(ctx, phone)
		if err != nil {
			return BroadcastResult{}, fmt.Errorf("failed to look up channel link: %w", err)
		}
		if !linked {
			result.Unlinked++
			continue
		}
		if _, dup := seen[chatID]; dup {
			continue
		}
		seen[chatID] = struct{}{}
		chatIDs = append(chatIDs, chatID)
	}

	result.BatchResult = d.transport.SendBatch(ctx, chatIDs, text)
	slog.InfoContext(ctx, "Broadcast finished",
		"sent", result.Sent,
		"failed", result.Failed,
		"unlinked", result.Unlinked)
	return result, nil
}
