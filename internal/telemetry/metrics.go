package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the meter used by the sync orchestrator
	SyncMetricsMeterName = "github.com/salonhub/booking-sync/sync"

	// DispatchMetricsMeterName is the meter used by the notification dispatcher
	DispatchMetricsMeterName = "github.com/salonhub/booking-sync/notify"

	// RetryMetricsMeterName is the meter used by the retry executor
	RetryMetricsMeterName = "github.com/salonhub/booking-sync/retry"
)

// SyncMetrics holds the instruments describing sync runs.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	syncDuration  metric.Float64Histogram
	phaseFailures metric.Int64Counter
	snapshotItems metric.Int64Gauge
}

// NewSyncMetrics creates the sync instruments. If provider is nil, it returns nil.
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"booking_sync_run_duration_seconds",
		metric.WithDescription("Duration of sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1200),
	)
	if err != nil {
		return nil, err
	}

	phaseFailures, err := meter.Int64Counter(
		"booking_sync_phase_failures_total",
		metric.WithDescription("Number of sync phases that ended with an error"),
		metric.WithUnit("{phase}"),
	)
	if err != nil {
		return nil, err
	}

	snapshotItems, err := meter.Int64Gauge(
		"booking_sync_snapshot_items",
		metric.WithDescription("Number of entities in the last published snapshot"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration:  syncDuration,
		phaseFailures: phaseFailures,
		snapshotItems: snapshotItems,
	}, nil
}

// RecordSyncDuration records how long a run took, labeled with its final status
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.syncDuration == nil {
		return
	}
	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordPhaseFailure counts a failed phase together with the kind of its last error
func (m *SyncMetrics) RecordPhaseFailure(ctx context.Context, phase, kind string) {
	if m == nil || m.phaseFailures == nil {
		return
	}
	m.phaseFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("kind", kind),
	))
}

// RecordSnapshotItems records the entity counts of a published snapshot, keyed by entity
func (m *SyncMetrics) RecordSnapshotItems(ctx context.Context, counts map[string]int) {
	if m == nil || m.snapshotItems == nil {
		return
	}
	for entity, n := range counts {
		m.snapshotItems.Record(ctx, int64(n), metric.WithAttributes(attribute.String("entity", entity)))
	}
}

// DispatchMetrics holds the instruments describing notification dispatch passes.
// A nil *DispatchMetrics is valid and records nothing.
type DispatchMetrics struct {
	outcomes metric.Int64Counter
	cleaned  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewDispatchMetrics creates the dispatch instruments. If provider is nil, it returns nil.
func NewDispatchMetrics(provider metric.MeterProvider) (*DispatchMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(DispatchMetricsMeterName)

	outcomes, err := meter.Int64Counter(
		"booking_sync_notifications_total",
		metric.WithDescription("Notifications handled by the dispatcher, by category and outcome"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	cleaned, err := meter.Int64Counter(
		"booking_sync_idempotency_cleaned_total",
		metric.WithDescription("Idempotency entries removed by cleanup"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"booking_sync_dispatch_duration_seconds",
		metric.WithDescription("Duration of dispatch passes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{outcomes: outcomes, cleaned: cleaned, duration: duration}, nil
}

// RecordOutcome adds n notifications of a category with the given outcome
// (sent, skipped or failed). Zero counts are ignored.
func (m *DispatchMetrics) RecordOutcome(ctx context.Context, category, outcome string, n int) {
	if m == nil || m.outcomes == nil || n == 0 {
		return
	}
	m.outcomes.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("outcome", outcome),
	))
}

// RecordCleaned counts idempotency entries removed by cleanup
func (m *DispatchMetrics) RecordCleaned(ctx context.Context, n int) {
	if m == nil || m.cleaned == nil || n == 0 {
		return
	}
	m.cleaned.Add(ctx, int64(n))
}

// RecordDuration records how long a dispatch pass took
func (m *DispatchMetrics) RecordDuration(ctx context.Context, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Record(ctx, duration.Seconds())
}

// RetryMetrics counts retries performed by the retry executor.
// A nil *RetryMetrics is valid and records nothing.
type RetryMetrics struct {
	retries metric.Int64Counter
}

// NewRetryMetrics creates the retry instruments. If provider is nil, it returns nil.
func NewRetryMetrics(provider metric.MeterProvider) (*RetryMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	retries, err := provider.Meter(RetryMetricsMeterName).Int64Counter(
		"booking_sync_upstream_retries_total",
		metric.WithDescription("Retries of upstream calls, by error kind"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}
	return &RetryMetrics{retries: retries}, nil
}

// RecordRetry counts one retry of an upstream call
func (m *RetryMetrics) RecordRetry(ctx context.Context, kind string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
