// Package event contains the Event and Event Stream types exchanged
// between the Event Store and its consumers.
package event

import (
	"github.com/google/uuid"

	"github.com/get-eventually/go-consumer/version"
)

// Metadata contains key-value data related to an Event that is not
// functional to the Event itself, but provides additional context,
// e.g. correlation and causation identifiers.
type Metadata map[string]string

// With returns a new Metadata reference holding the provided value
// at the specified key.
func (m Metadata) With(key, value string) Metadata {
	if m == nil {
		m = make(Metadata)
	}

	m[key] = value

	return m
}

// Envelope is an immutable Event record as produced by an application.
//
// The Data payload is opaque to this module: it is interpreted by the
// event handlers and projection reducers registered for the event Type,
// never by the delivery machinery itself.
type Envelope struct {
	// ID is the client-generated unique identifier of the Event,
	// used by the Event Store for write idempotence.
	ID uuid.UUID

	// Type is the Event type discriminator, used to route the Event
	// to its handlers and reducers.
	Type string

	// Data is the serialized Event payload.
	Data []byte

	Metadata Metadata
}

// Persisted is an Envelope that has been durably appended to an
// Event Stream, enriched with its position in the stream and in the
// Event Store global log.
//
// Persisted events are immutable: once delivered, no component of this
// module ever mutates them.
type Persisted struct {
	Envelope

	// StreamID is the identifier of the owning Event Stream.
	StreamID string

	// Version is the position of the Event within its own stream.
	// Unique and strictly increasing per StreamID.
	Version version.Version

	// Position is the position of the Event in the global log.
	// Unique and strictly increasing across all streams.
	Position version.Position
}
