// Package projection implements in-memory projections: keyed read models
// folded from an event stream through per-event-type reducers, with
// monotonic checkpointing of the global stream position.
package projection

import (
	"context"
	"fmt"
	"sync"

	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/version"
)

// Reducer folds one event payload into the current state of a stream.
//
// Reducers must be pure: given identical current state and payload they
// must produce identical new state. The engine does not enforce purity,
// but deterministic replay depends on it.
type Reducer[T any] interface {
	Reduce(current T, data []byte) (T, error)
}

// ReducerFunc is a functional implementation of the Reducer interface.
type ReducerFunc[T any] func(current T, data []byte) (T, error)

// Reduce implements the projection.Reducer interface.
func (fn ReducerFunc[T]) Reduce(current T, data []byte) (T, error) { return fn(current, data) }

// Applier is the part of a projection that folds persisted events,
// reporting whether the event was of interest.
type Applier interface {
	Apply(ctx context.Context, evt event.Persisted) (bool, error)
}

// Interface implementation assertion.
var _ Applier = &Projection[struct{}]{}

// Projection folds an ordered sequence of events into per-stream state
// of type T using registered reducers.
//
// A Projection instance owns its state mapping exclusively: all access
// goes through Apply and StateFor, which are safe for concurrent use.
type Projection[T any] struct {
	name string

	mx         sync.RWMutex
	reducers   map[string]Reducer[T]
	states     map[string]T
	checkpoint version.Position
	folded     bool
}

// New creates a named, empty Projection.
func New[T any](name string) *Projection[T] {
	return &Projection[T]{
		name:     name,
		reducers: make(map[string]Reducer[T]),
		states:   make(map[string]T),
	}
}

// Name returns the projection name.
func (p *Projection[T]) Name() string { return p.name }

// On registers or replaces the reducer for the specified event type,
// returning the Projection to allow chained registrations.
func (p *Projection[T]) On(eventType string, reducer Reducer[T]) *Projection[T] {
	p.mx.Lock()
	defer p.mx.Unlock()

	p.reducers[eventType] = reducer

	return p
}

// OnFunc is a convenience for On with a plain function reducer.
func (p *Projection[T]) OnFunc(eventType string, reducer func(current T, data []byte) (T, error)) *Projection[T] {
	return p.On(eventType, ReducerFunc[T](reducer))
}

// Apply folds the event into the state of its stream.
//
// When no reducer is registered for the event type, Apply returns false
// and the event is ignored: a projection only cares about a subset of
// event types, so this is not an error, and the checkpoint is untouched.
//
// On a successful fold the stream state is replaced with the reducer
// result and the checkpoint advances to the event's global Position.
// A reducer failure leaves both state and checkpoint untouched.
func (p *Projection[T]) Apply(_ context.Context, evt event.Persisted) (bool, error) {
	p.mx.Lock()
	defer p.mx.Unlock()

	reducer, ok := p.reducers[evt.Type]
	if !ok {
		return false, nil
	}

	current := p.states[evt.StreamID]

	next, err := reducer.Reduce(current, evt.Data)
	if err != nil {
		return false, fmt.Errorf("projection: %q failed to reduce event %q, %w", p.name, evt.Type, err)
	}

	p.states[evt.StreamID] = next

	if evt.Position.Compare(p.checkpoint) > 0 {
		p.checkpoint = evt.Position
	}

	p.folded = true

	return true, nil
}

// StateFor returns the folded state of the specified stream, if any.
func (p *Projection[T]) StateFor(streamID string) (T, bool) {
	p.mx.RLock()
	defer p.mx.RUnlock()

	state, ok := p.states[streamID]

	return state, ok
}

// Checkpoint returns the highest global Position successfully folded,
// and false if nothing has been folded yet.
//
// On restart, callers resume their subscription from this value; the
// resumption itself is out of this package's hands.
func (p *Projection[T]) Checkpoint() (version.Position, bool) {
	p.mx.RLock()
	defer p.mx.RUnlock()

	return p.checkpoint, p.folded
}
