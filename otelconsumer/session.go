package otelconsumer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/get-eventually/go-consumer/delivery"
	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/projection"
)

var _ projection.EventSource = &InstrumentedSession{}

// InstrumentedSession wraps a projection.EventSource, typically a
// *subscription.Session, to report delivery and disposition counters
// using OpenTelemetry.
//
// Use InstrumentSession to create a new instance.
type InstrumentedSession struct {
	group   string
	session projection.EventSource

	delivered    metric.Int64Counter
	dispositions metric.Int64Counter
}

// InstrumentSession wraps a session to export telemetry data using
// OpenTelemetry. The group name is reported on every metric.
func InstrumentSession(group string, session projection.EventSource, opts ...Option) (*InstrumentedSession, error) {
	cfg := newConfig(opts...)
	meter := cfg.meter()

	is := &InstrumentedSession{
		group:   group,
		session: session,
	}

	var err error

	if is.delivered, err = meter.Int64Counter(
		"consumer.session.delivered.count",
		metric.WithDescription("Count of events delivered through the session"),
	); err != nil {
		return nil, fmt.Errorf("otelconsumer: failed to register metric: %w", err)
	}

	if is.dispositions, err = meter.Int64Counter(
		"consumer.session.disposition.count",
		metric.WithDescription("Count of dispositions issued through the session"),
	); err != nil {
		return nil, fmt.Errorf("otelconsumer: failed to register metric: %w", err)
	}

	return is, nil
}

// Next delegates to the underlying session and counts the delivery.
func (is *InstrumentedSession) Next(ctx context.Context) (event.Persisted, error) {
	evt, err := is.session.Next(ctx)
	if err != nil {
		return evt, err
	}

	is.delivered.Add(ctx, 1, metric.WithAttributes(
		GroupAttribute.String(is.group),
		StreamIDAttribute.String(evt.StreamID),
		EventTypeAttribute.String(evt.Type),
	))

	return evt, nil
}

// Disposition delegates to the underlying session and counts the
// disposition by action.
func (is *InstrumentedSession) Disposition(ctx context.Context, id delivery.ID, action delivery.Action) error {
	if err := is.session.Disposition(ctx, id, action); err != nil {
		return err
	}

	is.dispositions.Add(ctx, 1, metric.WithAttributes(
		GroupAttribute.String(is.group),
		ActionAttribute.String(action.String()),
	))

	return nil
}
