// Package delivery tracks in-flight events delivered through a persistent
// subscription and enforces that exactly one terminal disposition is ever
// recorded per delivered event.
package delivery

import (
	"fmt"

	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/version"
)

// ID is the delivery identity of an event: the owning stream plus the
// event's position within it.
type ID struct {
	StreamID string
	Version  version.Version
}

func (id ID) String() string {
	return fmt.Sprintf("%s@%d", id.StreamID, id.Version)
}

// IDOf returns the delivery identity of a persisted event.
func IDOf(evt event.Persisted) ID {
	return ID{StreamID: evt.StreamID, Version: evt.Version}
}

// State is the delivery state of a tracked event.
type State uint8

const (
	// StateDelivered marks an event handed to the consumer and still
	// awaiting its disposition. It is the only non-terminal state.
	StateDelivered State = iota

	// StateAcked marks an event successfully processed.
	StateAcked

	// StateParked marks an event set aside for manual inspection.
	StateParked

	// StateSkipped marks an event considered processed-but-ignored.
	StateSkipped
)

// Terminal reports whether the state is final: once reached, no further
// disposition is accepted for the entry.
func (s State) Terminal() bool {
	return s != StateDelivered
}

func (s State) String() string {
	switch s {
	case StateDelivered:
		return "delivered"
	case StateAcked:
		return "acked"
	case StateParked:
		return "parked"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Action is the disposition a consumer issues for a delivered event.
type Action uint8

const (
	// ActionAck marks the event as successfully processed.
	ActionAck Action = iota

	// ActionRetry schedules the event for reprocessing by the consumer.
	// The entry stays Delivered and its attempt count grows; no retry
	// cap is enforced here, bounding retries is consumer policy.
	ActionRetry

	// ActionPark sets the event aside for manual inspection.
	ActionPark

	// ActionSkip marks the event as processed-but-ignored.
	ActionSkip

	// ActionStop asks the owning session to stop pulling new events and
	// drain. It is a session-level signal: the entry state is untouched,
	// and the action is valid regardless of the entry state.
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionAck:
		return "ack"
	case ActionRetry:
		return "retry"
	case ActionPark:
		return "park"
	case ActionSkip:
		return "skip"
	case ActionStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Entry is the bookkeeping record of one delivered event.
//
// Entries are returned by value: the Tracker retains exclusive ownership
// of its internal records.
type Entry struct {
	// Event is the delivered event this entry refers to.
	Event event.Persisted

	// Attempts is the number of Retry dispositions issued so far.
	Attempts uint

	// State is the current delivery state.
	State State
}
