// Package telemetry provides OpenTelemetry tracing for task operations.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing with task-service helpers.
type Tracer struct {
	tracer trace.Tracer
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a new tracer with the given instrumentation name.
func NewTracer(name string) *Tracer {
	return &Tracer{tracer: otel.Tracer(name)}
}

// StartOperation starts a span for a dispatched task operation.
func (t *Tracer) StartOperation(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("taskkit.operation", op)),
	)
}

// RecordTask annotates the span with the task the operation touched.
func RecordTask(span trace.Span, taskID, status string) {
	span.SetAttributes(
		attribute.String("taskkit.task_id", taskID),
		attribute.String("taskkit.task_status", status),
	)
}

// RecordStorageStatus annotates the span with the storage outcome.
func RecordStorageStatus(span trace.Span, ok bool) {
	span.SetAttributes(attribute.Bool("taskkit.storage_status", ok))
}

// End finishes the span, recording err if the operation failed.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
