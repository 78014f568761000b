// Package inmemory provides a complete, thread-safe, in-memory
// implementation of the eventstore contract, including persistent
// consumer groups with redelivery.
//
// It is primarily meant for tests and examples, but behaves like a real
// Event Store from the consumer's point of view: global ordering,
// optimistic concurrency on append, catch-up and volatile subscriptions,
// and at-least-once persistent feeds.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/eventstore"
	"github.com/get-eventually/go-consumer/version"
)

// Interface implementation assertion.
var _ eventstore.Store = new(EventStore)

// AllStreams is the reserved stream identifier addressing the global
// stream in persistent subscription calls.
const AllStreams = "$all"

const subscriberBufferSize = 128

type subscriber struct {
	ch     chan event.Persisted
	target eventstore.Target
	filter *eventstore.Filter
	done   chan struct{}
}

// EventStore is an in-memory eventstore.Store implementation.
type EventStore struct {
	mx sync.RWMutex

	log     []event.Persisted
	streams map[string][]int
	lastSeq uint64
	subs    []*subscriber
	groups  map[groupKey]*group
}

// NewEventStore creates a new empty EventStore instance.
func NewEventStore() *EventStore {
	return &EventStore{
		streams: make(map[string][]int),
		groups:  make(map[groupKey]*group),
	}
}

func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("inmemory.EventStore: context error, %w", err)
	}

	return nil
}

// Append inserts the provided events into the specified Event Stream,
// returning the new version of the stream.
//
// Use version.CheckExact to enable the optimistic concurrency check on
// append, or version.Any to skip it. A version.ConflictError is returned
// when the check fails.
func (s *EventStore) Append(
	_ context.Context,
	streamID string,
	expected version.Check,
	events ...event.Envelope,
) (version.Version, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	currentVersion := version.Version(len(s.streams[streamID]))

	if exact, ok := expected.(version.CheckExact); ok && version.Version(exact) != currentVersion {
		return 0, fmt.Errorf("inmemory.EventStore: failed to append events, %w", version.ConflictError{
			Expected: version.Version(exact),
			Actual:   currentVersion,
		})
	}

	for i, evt := range events {
		s.lastSeq++

		persisted := event.Persisted{
			Envelope: evt,
			StreamID: streamID,
			Version:  currentVersion + version.Version(i) + 1,
			Position: version.Position{Commit: s.lastSeq, Prepare: s.lastSeq},
		}

		s.log = append(s.log, persisted)
		s.streams[streamID] = append(s.streams[streamID], len(s.log)-1)

		s.notifySubscribers(persisted)
	}

	s.notifyGroups(streamID)

	return version.Version(len(s.streams[streamID])), nil
}

// notifySubscribers delivers a freshly committed event to every live
// subscriber whose target and filter match. Called with the lock held.
func (s *EventStore) notifySubscribers(evt event.Persisted) {
	for _, sub := range s.subs {
		if !targetMatches(sub.target, evt.StreamID) || !sub.filter.Matches(evt.StreamID, evt.Type) {
			continue
		}

		select {
		case sub.ch <- evt:
		case <-sub.done:
		}
	}
}

// Read writes at most maxCount events from the specified Event Stream onto
// the provided channel, starting from the selector, then closes the channel.
//
// A maxCount of zero or less reads the stream to its end.
func (s *EventStore) Read(
	ctx context.Context,
	stream event.Stream,
	streamID string,
	selector version.Selector,
	maxCount int,
) error {
	s.mx.RLock()
	defer s.mx.RUnlock()
	defer close(stream)

	sent := 0

	for _, idx := range s.streams[streamID] {
		evt := s.log[idx]

		if evt.Version < selector.From {
			continue
		}

		if maxCount > 0 && sent >= maxCount {
			break
		}

		select {
		case stream <- evt:
			sent++
		case <-ctx.Done():
			return contextErr(ctx)
		}
	}

	return nil
}

// Stream writes all committed events matching the target and filter onto
// the provided channel, starting after the given global Position, then
// closes the channel.
func (s *EventStore) Stream(
	ctx context.Context,
	stream event.Stream,
	target eventstore.Target,
	from version.Position,
	filter *eventstore.Filter,
) error {
	s.mx.RLock()
	backlog := s.collect(target, from, filter)
	s.mx.RUnlock()

	defer close(stream)

	for _, evt := range backlog {
		select {
		case stream <- evt:
		case <-ctx.Done():
			return contextErr(ctx)
		}
	}

	return nil
}

// Subscribe replays all committed events matching the target and filter
// starting after the given global Position, then keeps following new
// commits until the context is canceled.
//
// This call is synchronous and always returns the context error
// once canceled.
func (s *EventStore) Subscribe(
	ctx context.Context,
	stream event.Stream,
	target eventstore.Target,
	from version.Position,
	filter *eventstore.Filter,
) error {
	defer close(stream)

	sub := &subscriber{
		ch:     make(chan event.Persisted, subscriberBufferSize),
		target: target,
		filter: filter,
		done:   make(chan struct{}),
	}

	// Snapshotting the backlog and registering the subscriber is atomic,
	// so no event can be lost or duplicated between replay and live phases.
	s.mx.Lock()
	backlog := s.collect(target, from, filter)
	s.subs = append(s.subs, sub)
	s.mx.Unlock()

	defer s.removeSubscriber(sub)

	for _, evt := range backlog {
		select {
		case stream <- evt:
		case <-ctx.Done():
			return contextErr(ctx)
		}
	}

	for {
		select {
		case evt := <-sub.ch:
			select {
			case stream <- evt:
			case <-ctx.Done():
				return contextErr(ctx)
			}
		case <-ctx.Done():
			return contextErr(ctx)
		}
	}
}

func (s *EventStore) removeSubscriber(sub *subscriber) {
	// Closing done before taking the lock releases any Append currently
	// blocked on this subscriber's full buffer: that Append is holding
	// the store lock this method is about to acquire.
	close(sub.done)

	s.mx.Lock()
	defer s.mx.Unlock()

	subs := make([]*subscriber, 0, len(s.subs))

	for _, other := range s.subs {
		if other != sub {
			subs = append(subs, other)
		}
	}

	s.subs = subs
}

// collect returns the committed events matching the target and filter,
// after the given global Position. Called with the lock held.
func (s *EventStore) collect(
	target eventstore.Target,
	from version.Position,
	filter *eventstore.Filter,
) []event.Persisted {
	var events []event.Persisted

	for _, evt := range s.log {
		if evt.Position.Compare(from) <= 0 {
			continue
		}

		if !targetMatches(target, evt.StreamID) || !filter.Matches(evt.StreamID, evt.Type) {
			continue
		}

		events = append(events, evt)
	}

	return events
}

func targetMatches(target eventstore.Target, streamID string) bool {
	switch t := target.(type) {
	case eventstore.TargetStream:
		return t.Name == streamID
	default:
		return true
	}
}
