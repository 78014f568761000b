package otelconsumer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/projection"
)

var _ projection.Applier = &InstrumentedProjection{}

// InstrumentedProjection wraps a projection.Applier instance to provide
// telemetry support using OpenTelemetry.
//
// Use InstrumentProjection to create a new instance.
type InstrumentedProjection struct {
	name    string
	tracer  trace.Tracer
	applier projection.Applier

	count    metric.Int64Counter
	duration metric.Float64Histogram
}

// InstrumentProjection wraps a projection.Applier to export telemetry
// data using OpenTelemetry.
//
// The name provided is used for both traces and metrics.
func InstrumentProjection(name string, applier projection.Applier, opts ...Option) (*InstrumentedProjection, error) {
	cfg := newConfig(opts...)
	meter := cfg.meter()

	ip := &InstrumentedProjection{
		name:    name,
		tracer:  cfg.tracer(),
		applier: applier,
	}

	var err error

	if ip.count, err = meter.Int64Counter(
		"consumer.projection.apply.count",
		metric.WithDescription("Count of apply operations performed by the projection"),
	); err != nil {
		return nil, fmt.Errorf("otelconsumer: failed to register metric: %w", err)
	}

	if ip.duration, err = meter.Float64Histogram(
		"consumer.projection.apply.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration of apply operations performed by the projection"),
	); err != nil {
		return nil, fmt.Errorf("otelconsumer: failed to register metric: %w", err)
	}

	return ip, nil
}

// Apply folds the provided event using the underlying projection.Applier
// and reports telemetry data on its execution.
func (ip *InstrumentedProjection) Apply(ctx context.Context, evt event.Persisted) (applied bool, err error) {
	attributes := []attribute.KeyValue{
		ProjectionNameAttribute.String(ip.name),
		EventTypeAttribute.String(evt.Type),
	}

	spanAttributes := append([]attribute.KeyValue{
		StreamIDAttribute.String(evt.StreamID),
		EventVersionAttribute.Int64(int64(evt.Version)),
	}, attributes...)

	ctx, span := ip.tracer.Start(ctx, "projection.Apply", trace.WithAttributes(spanAttributes...))

	start := time.Now()

	defer func() {
		elapsed := time.Since(start)

		attributes := append([]attribute.KeyValue{AppliedAttribute.Bool(applied)}, attributes...)
		ip.count.Add(ctx, 1, metric.WithAttributes(attributes...))
		ip.duration.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(attributes...))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	return ip.applier.Apply(ctx, evt)
}
