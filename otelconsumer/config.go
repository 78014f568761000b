// Package otelconsumer provides OpenTelemetry instrumentation for
// subscription sessions and projections.
package otelconsumer

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/get-eventually/go-consumer/otelconsumer"

type config struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func (c config) meter() metric.Meter {
	provider := c.meterProvider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	return provider.Meter(instrumentationName)
}

func (c config) tracer() trace.Tracer {
	provider := c.tracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return provider.Tracer(instrumentationName)
}

// Option allows changing the default configuration
// of the instrumented components.
type Option func(*config)

// WithMeterProvider overrides the global otel MeterProvider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *config) { c.meterProvider = provider }
}

// WithTracerProvider overrides the global otel TracerProvider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = provider }
}

func newConfig(opts ...Option) config {
	var cfg config

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}
