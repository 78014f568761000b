package eventstore

import (
	"context"

	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/version"
)

// NackAction is the action requested from the Event Store when negatively
// acknowledging an event delivered through a persistent subscription.
type NackAction uint8

const (
	// NackRetry asks the Event Store to redeliver the event.
	NackRetry NackAction = iota

	// NackPark moves the event to the group's parked queue
	// for manual inspection.
	NackPark

	// NackSkip marks the event as processed-but-ignored
	// and advances past it.
	NackSkip
)

func (a NackAction) String() string {
	switch a {
	case NackRetry:
		return "retry"
	case NackPark:
		return "park"
	case NackSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// GroupOptions carries the settings used when creating a persistent
// subscription group.
type GroupOptions struct {
	// StartFrom is the global Position the group starts consuming from.
	// The zero value starts from the beginning of the stream.
	StartFrom version.Position

	// Filter restricts the events delivered to the group. It is
	// serialized into the creation request and evaluated server-side.
	// A nil Filter delivers everything.
	Filter *Filter
}

// PersistentFeed is the handle over an open persistent subscription:
// an at-least-once, acknowledgement-based feed of events for one
// consumer group.
//
// Multiple feeds may be open on the same group; the Event Store
// distributes events between them (competing consumers).
type PersistentFeed interface {
	// Next blocks until the Event Store produces the next event for this
	// consumer, the context is canceled, or the feed fails or is closed.
	Next(ctx context.Context) (event.Persisted, error)

	// Ack reports the event as successfully processed.
	Ack(ctx context.Context, evt event.Persisted) error

	// Nack reports the event as not processed, with the requested action.
	Nack(ctx context.Context, evt event.Persisted, action NackAction, reason string) error

	// Close tears down the feed. In-flight events are not affected:
	// the Event Store redelivers them to the group.
	Close() error
}

// PersistentSubscriber is an Event Store trait exposing persistent
// (competing-consumer) subscriptions over a named group.
type PersistentSubscriber interface {
	// CreatePersistentSubscription creates a new consumer group on the
	// specified Event Stream. ErrGroupAlreadyExists is returned when the
	// group has already been created, which callers typically log
	// and ignore.
	CreatePersistentSubscription(ctx context.Context, streamID, group string, options GroupOptions) error

	// SubscribeToPersistentSubscription opens a feed on an existing
	// consumer group. ErrGroupNotFound is returned if the group
	// has not been created.
	SubscribeToPersistentSubscription(ctx context.Context, streamID, group string) (PersistentFeed, error)
}
