package delivery

import (
	"errors"
	"fmt"
	"sync"

	"github.com/get-eventually/go-consumer/event"
)

// ErrNotTracked is returned when issuing a disposition for an event
// that is not currently tracked.
var ErrNotTracked = errors.New("delivery: event is not tracked")

// DuplicateDeliveryError is returned by Tracker.Record when the feed
// delivers an event whose identity is already tracked and still awaiting
// a disposition. It signals a protocol violation by the feed and is
// non-fatal: callers typically log it and carry on.
type DuplicateDeliveryError struct {
	ID ID
}

func (err DuplicateDeliveryError) Error() string {
	return fmt.Sprintf("delivery: duplicate delivery of in-flight event %s", err.ID)
}

// InvalidTransitionError is returned when a disposition is issued for an
// entry that has already reached a terminal state. Double-acking (or
// double-nacking) an event is a programming error on the consumer side;
// the tracker state is left untouched.
type InvalidTransitionError struct {
	ID     ID
	State  State
	Action Action
}

func (err InvalidTransitionError) Error() string {
	return fmt.Sprintf(
		"delivery: invalid %s disposition for event %s in state %s",
		err.Action, err.ID, err.State,
	)
}

// Tracker maintains the set of in-flight events for one subscription.
//
// Every mutating call is serialized internally, so a consumer fanning out
// processing across goroutines can safely share one Tracker. The tracker
// performs no I/O: it only decides and remembers each disposition, exactly
// once; communicating the decision to the feed is the session's job.
type Tracker struct {
	mx      sync.Mutex
	entries map[ID]Entry
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[ID]Entry),
	}
}

// Record registers a newly delivered event in Delivered state with zero
// attempts, returning the created entry.
//
// A DuplicateDeliveryError is returned if the event identity is already
// tracked and non-terminal. A redelivery over a terminal entry that has
// not been resolved yet replaces it with a fresh entry, matching the
// at-least-once semantics of the feed.
func (t *Tracker) Record(evt event.Persisted) (Entry, error) {
	t.mx.Lock()
	defer t.mx.Unlock()

	id := IDOf(evt)

	if existing, ok := t.entries[id]; ok && !existing.State.Terminal() {
		return Entry{}, DuplicateDeliveryError{ID: id}
	}

	entry := Entry{Event: evt, State: StateDelivered}
	t.entries[id] = entry

	return entry, nil
}

// Disposition applies the consumer's decision for a tracked event and
// returns the resulting entry.
//
// Terminal actions (Ack, Park, Skip) succeed only from the Delivered
// state; Retry keeps the entry Delivered and increments its attempt
// count; Stop never touches the entry and is always valid, even for
// untracked identities, since it is a session-level signal.
func (t *Tracker) Disposition(id ID, action Action) (Entry, error) {
	t.mx.Lock()
	defer t.mx.Unlock()

	entry, ok := t.entries[id]

	if action == ActionStop {
		return entry, nil
	}

	if !ok {
		return Entry{}, fmt.Errorf("delivery: disposition for %s failed, %w", id, ErrNotTracked)
	}

	if entry.State.Terminal() {
		return Entry{}, InvalidTransitionError{ID: id, State: entry.State, Action: action}
	}

	switch action {
	case ActionAck:
		entry.State = StateAcked
	case ActionRetry:
		entry.Attempts++
	case ActionPark:
		entry.State = StateParked
	case ActionSkip:
		entry.State = StateSkipped
	}

	t.entries[id] = entry

	return entry, nil
}

// Resolve removes a terminal entry from the tracking set, once its
// disposition has been durably communicated to the feed.
//
// Resolving a non-terminal entry fails with InvalidTransitionError,
// carrying the Stop action as a marker of a session-level operation.
func (t *Tracker) Resolve(id ID) error {
	t.mx.Lock()
	defer t.mx.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return fmt.Errorf("delivery: resolve of %s failed, %w", id, ErrNotTracked)
	}

	if !entry.State.Terminal() {
		return InvalidTransitionError{ID: id, State: entry.State, Action: ActionStop}
	}

	delete(t.entries, id)

	return nil
}

// Entry returns the tracked entry for the given identity, if any.
func (t *Tracker) Entry(id ID) (Entry, bool) {
	t.mx.Lock()
	defer t.mx.Unlock()

	entry, ok := t.entries[id]

	return entry, ok
}

// Outstanding returns the number of entries still awaiting a disposition,
// typically used by consumers to cap concurrent in-flight processing.
func (t *Tracker) Outstanding() int {
	t.mx.Lock()
	defer t.mx.Unlock()

	outstanding := 0

	for _, entry := range t.entries {
		if !entry.State.Terminal() {
			outstanding++
		}
	}

	return outstanding
}
