package otelconsumer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys reported on the exported metrics and spans.
const (
	ProjectionNameAttribute attribute.Key = "projection.name"
	GroupAttribute          attribute.Key = "subscription.group"
	StreamIDAttribute       attribute.Key = "event.stream.id"
	EventTypeAttribute      attribute.Key = "event.type"
	EventVersionAttribute   attribute.Key = "event.version"
	ActionAttribute         attribute.Key = "delivery.action"
	AppliedAttribute        attribute.Key = "projection.applied"
)
