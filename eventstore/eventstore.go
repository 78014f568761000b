// Package eventstore defines the contract between this module and the
// Event Store it consumes from.
//
// All interesting guarantees (durability, global ordering, server-side
// filter evaluation, redelivery on missing acknowledgement) are provided
// by the Event Store implementation; this package only captures the
// surface this module relies on. A complete in-memory implementation
// is provided in the inmemory subpackage.
package eventstore

import (
	"context"

	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/version"
)

// Target represents the Event Stream target of a read or subscription:
// either a single named stream, or the global stream.
//
// Please note: this is a marker interface. The only two valid variants
// are TargetAll and TargetStream.
type Target interface {
	isTarget()
}

// TargetAll targets the global stream, i.e. all events committed
// to the Event Store, ordered by global Position.
type TargetAll struct{}

func (TargetAll) isTarget() {}

// TargetStream targets a single named Event Stream.
type TargetStream struct {
	Name string
}

func (TargetStream) isTarget() {}

// Appender is an Event Store trait used to append new events
// to an Event Stream.
type Appender interface {
	// Append adds the provided events to the specified Event Stream,
	// returning the new version of the stream.
	//
	// A version.ConflictError is returned if the expected version check
	// fails against the current state of the stream.
	Append(ctx context.Context, streamID string, expected version.Check, events ...event.Envelope) (version.Version, error)
}

// Reader is an Event Store trait used to read a finite slice
// of a single Event Stream.
type Reader interface {
	// Read writes at most maxCount events from the specified Event Stream
	// onto the provided event.Stream, starting from the selector, then
	// closes the channel. The produced sequence is finite and cannot be
	// restarted without re-issuing the call.
	Read(ctx context.Context, stream event.Stream, streamID string, selector version.Selector, maxCount int) error
}

// Streamer is an Event Store trait used to catch up with committed events.
type Streamer interface {
	// Stream writes all committed events matching the target and filter
	// onto the provided event.Stream, starting after the given global
	// Position, then closes the channel and returns.
	Stream(ctx context.Context, stream event.Stream, target Target, from version.Position, filter *Filter) error
}

// Subscriber is an Event Store trait used to open volatile subscriptions:
// infinite event streams that replay from a global Position and then
// follow new commits, until the context is canceled or the store fails.
type Subscriber interface {
	Subscribe(ctx context.Context, stream event.Stream, target Target, from version.Position, filter *Filter) error
}

// Store is the full Event Store contract used by this module.
type Store interface {
	Appender
	Reader
	Streamer
	Subscriber
	PersistentSubscriber
}

// Fused is a convenience type to fuse multiple Event Store traits
// where only part of the functionality needs to be extended, e.g. to
// decorate the Appender while keeping the Streamer untouched.
type Fused struct {
	Appender
	Reader
	Streamer
	Subscriber
	PersistentSubscriber
}
