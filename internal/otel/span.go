// Package otel provides OpenTelemetry instrumentation utilities for booking sync.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by sync and dispatch spans
const (
	AttrRunID            = attribute.Key("sync.run_id")
	AttrSyncPhase        = attribute.Key("sync.phase")
	AttrNotificationType = attribute.Key("notification.type")
	AttrRecordID         = attribute.Key("booking.record_id")
	AttrResultCount      = attribute.Key("result.count")
)

// Tracer returns a named tracer from provider, or nil when provider is nil.
// A nil tracer makes StartSpan a no-op.
func Tracer(provider trace.TracerProvider, name string) trace.Tracer {
	if provider == nil {
		return nil
	}
	return provider.Tracer(name)
}

// StartSpan starts a new span if the tracer is non-nil. Otherwise ctx is
// returned unchanged with a no-op span, so ending it never ends a parent.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span as failed. Nil spans and
// nil errors are ignored. The status description stays generic so that
// tokens or phone numbers in error text never reach the span status; the
// full error is kept in the exception event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
