// Package otel implements tea.Observability using OpenTelemetry tracing
// and metrics.
package otel

import (
	"context"
	"time"

	"github.com/brewloop/tea"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/brewloop/tea"
)

// Observability implements tea.Observability using OpenTelemetry
type Observability struct {
	tracer trace.Tracer
	meter  metric.Meter

	// Metrics
	enqueueCounter metric.Int64Counter
	applyCounter   metric.Int64Counter
	applyDuration  metric.Float64Histogram
	recordCounter  metric.Int64Counter
	recordDuration metric.Float64Histogram
	recordErrors   metric.Int64Counter
}

// Option configures the Observability
type Option func(*Observability)

// WithTracerProvider sets a custom tracer provider
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *Observability) {
		o.tracer = provider.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets a custom meter provider
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *Observability) {
		o.meter = provider.Meter(instrumentationName)
	}
}

// New creates a new OpenTelemetry observability implementation
func New(opts ...Option) (*Observability, error) {
	obs := &Observability{
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}

	// Apply options
	for _, opt := range opts {
		opt(obs)
	}

	// Initialize metrics
	var err error

	obs.enqueueCounter, err = obs.meter.Int64Counter(
		"tea.enqueue.count",
		metric.WithDescription("Number of actions enqueued"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	obs.applyCounter, err = obs.meter.Int64Counter(
		"tea.apply.count",
		metric.WithDescription("Number of actions applied by the update loop"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	obs.applyDuration, err = obs.meter.Float64Histogram(
		"tea.apply.duration",
		metric.WithDescription("Action apply duration, including notification and journaling"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	obs.recordCounter, err = obs.meter.Int64Counter(
		"tea.record.count",
		metric.WithDescription("Number of journal writes"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	obs.recordDuration, err = obs.meter.Float64Histogram(
		"tea.record.duration",
		metric.WithDescription("Journal write duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	obs.recordErrors, err = obs.meter.Int64Counter(
		"tea.record.errors",
		metric.WithDescription("Number of journal write errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return obs, nil
}

// OnEnqueue is called after an action is accepted by the queue
func (o *Observability) OnEnqueue(ctx context.Context, actionType string) {
	o.enqueueCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action.type", actionType),
		),
	)
}

// OnApplyStart is called when the update loop begins applying an action
func (o *Observability) OnApplyStart(ctx context.Context, actionType string) context.Context {
	ctx, _ = o.tracer.Start(ctx, "tea.apply: "+actionType,
		trace.WithAttributes(
			attribute.String("action.type", actionType),
		),
	)

	o.applyCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action.type", actionType),
		),
	)

	return ctx
}

// OnApplyComplete is called when an action is fully applied and committed
func (o *Observability) OnApplyComplete(ctx context.Context, duration time.Duration) {
	span := trace.SpanFromContext(ctx)

	durationMs := float64(duration.Microseconds()) / 1000.0
	o.applyDuration.Record(ctx, durationMs)

	span.SetStatus(codes.Ok, "")
	span.End()
}

// OnRecordStart is called when a journal write starts
func (o *Observability) OnRecordStart(ctx context.Context, actionType string, seq int64) context.Context {
	ctx, _ = o.tracer.Start(ctx, "tea.record: "+actionType,
		trace.WithAttributes(
			attribute.String("action.type", actionType),
			attribute.Int64("seq", seq),
		),
	)

	o.recordCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action.type", actionType),
		),
	)

	return ctx
}

// OnRecordComplete is called when a journal write completes
func (o *Observability) OnRecordComplete(ctx context.Context, duration time.Duration, err error) {
	span := trace.SpanFromContext(ctx)

	durationMs := float64(duration.Microseconds()) / 1000.0
	o.recordDuration.Record(ctx, durationMs)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		o.recordErrors.Add(ctx, 1)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// Ensure Observability implements tea.Observability
var _ tea.Observability = (*Observability)(nil)
