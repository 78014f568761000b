package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/eventstore"
	"github.com/get-eventually/go-consumer/version"
)

type groupKey struct {
	streamID string
	group    string
}

// group holds the server-side state of one persistent consumer group.
//
// All fields are guarded by the owning EventStore mutex.
type group struct {
	streamID string
	filter   *eventstore.Filter

	// cursor is the index in the store log of the next candidate event
	// that has never been delivered to the group.
	cursor int

	// retry holds events scheduled for redelivery, served before any
	// new event.
	retry []event.Persisted

	// parked holds events nacked with eventstore.NackPark, kept around
	// for operator inspection.
	parked []event.Persisted

	// wakeup is closed and replaced whenever new work may be available,
	// broadcasting to every feed blocked in Next.
	wakeup chan struct{}
}

func (g *group) owns(streamID string) bool {
	return g.streamID == AllStreams || g.streamID == streamID
}

// take pops the next event for the group: redeliveries first, then the
// next undelivered committed event. Called with the store lock held.
func (g *group) take(log []event.Persisted) (event.Persisted, bool) {
	if len(g.retry) > 0 {
		evt := g.retry[0]
		g.retry = g.retry[1:]

		return evt, true
	}

	for g.cursor < len(log) {
		evt := log[g.cursor]
		g.cursor++

		if g.owns(evt.StreamID) && g.filter.Matches(evt.StreamID, evt.Type) {
			return evt, true
		}
	}

	return event.Persisted{}, false
}

func (g *group) signal() {
	close(g.wakeup)
	g.wakeup = make(chan struct{})
}

// CreatePersistentSubscription creates a new consumer group on the
// specified Event Stream. Use AllStreams as stream identifier to consume
// the global stream.
func (s *EventStore) CreatePersistentSubscription(
	_ context.Context,
	streamID, groupName string,
	options eventstore.GroupOptions,
) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	key := groupKey{streamID: streamID, group: groupName}

	if _, ok := s.groups[key]; ok {
		return fmt.Errorf("inmemory.EventStore: %w", eventstore.ErrGroupAlreadyExists)
	}

	s.groups[key] = &group{
		streamID: streamID,
		filter:   options.Filter,
		cursor:   s.cursorAfter(options.StartFrom),
		wakeup:   make(chan struct{}),
	}

	return nil
}

// cursorAfter returns the log index of the first event strictly after
// the given global Position. Called with the lock held.
func (s *EventStore) cursorAfter(from version.Position) int {
	for i, evt := range s.log {
		if evt.Position.Compare(from) > 0 {
			return i
		}
	}

	return len(s.log)
}

// SubscribeToPersistentSubscription opens a feed on an existing consumer
// group. Multiple feeds on the same group compete for events.
func (s *EventStore) SubscribeToPersistentSubscription(
	_ context.Context,
	streamID, groupName string,
) (eventstore.PersistentFeed, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	g, ok := s.groups[groupKey{streamID: streamID, group: groupName}]
	if !ok {
		return nil, fmt.Errorf("inmemory.EventStore: %w", eventstore.ErrGroupNotFound)
	}

	return &persistentFeed{
		store:    s,
		group:    g,
		inflight: make(map[version.Position]event.Persisted),
		closed:   make(chan struct{}),
	}, nil
}

// ParkedEvents returns the events parked by the specified consumer group,
// in park order.
func (s *EventStore) ParkedEvents(streamID, groupName string) []event.Persisted {
	s.mx.RLock()
	defer s.mx.RUnlock()

	g, ok := s.groups[groupKey{streamID: streamID, group: groupName}]
	if !ok {
		return nil
	}

	parked := make([]event.Persisted, len(g.parked))
	copy(parked, g.parked)

	return parked
}

// notifyGroups wakes up the feeds of every group owning the stream that
// just received new events. Called with the lock held.
func (s *EventStore) notifyGroups(streamID string) {
	for _, g := range s.groups {
		if g.owns(streamID) {
			g.signal()
		}
	}
}

// Interface implementation assertion.
var _ eventstore.PersistentFeed = new(persistentFeed)

type persistentFeed struct {
	store *EventStore
	group *group

	mx       sync.Mutex
	inflight map[version.Position]event.Persisted

	closeOnce sync.Once
	closed    chan struct{}
}

// Next blocks until the group produces the next event for this consumer,
// the context is canceled, or the feed is closed.
func (f *persistentFeed) Next(ctx context.Context) (event.Persisted, error) {
	for {
		select {
		case <-f.closed:
			return event.Persisted{}, eventstore.ErrFeedClosed
		default:
		}

		f.store.mx.Lock()
		evt, ok := f.group.take(f.store.log)
		wakeup := f.group.wakeup
		f.store.mx.Unlock()

		if ok {
			f.track(evt)
			return evt, nil
		}

		select {
		case <-wakeup:
		case <-f.closed:
			return event.Persisted{}, eventstore.ErrFeedClosed
		case <-ctx.Done():
			return event.Persisted{}, contextErr(ctx)
		}
	}
}

func (f *persistentFeed) track(evt event.Persisted) {
	f.mx.Lock()
	defer f.mx.Unlock()

	f.inflight[evt.Position] = evt
}

func (f *persistentFeed) untrack(evt event.Persisted) {
	f.mx.Lock()
	defer f.mx.Unlock()

	delete(f.inflight, evt.Position)
}

// Ack reports the event as successfully processed and drops it from the
// in-flight set.
func (f *persistentFeed) Ack(_ context.Context, evt event.Persisted) error {
	select {
	case <-f.closed:
		return eventstore.ErrFeedClosed
	default:
	}

	f.untrack(evt)

	return nil
}

// Nack reports the event as not processed. Retry schedules it for
// redelivery to the group, Park moves it to the parked queue, and Skip
// drops it.
func (f *persistentFeed) Nack(_ context.Context, evt event.Persisted, action eventstore.NackAction, _ string) error {
	select {
	case <-f.closed:
		return eventstore.ErrFeedClosed
	default:
	}

	f.untrack(evt)

	f.store.mx.Lock()
	defer f.store.mx.Unlock()

	switch action {
	case eventstore.NackRetry:
		f.group.retry = append(f.group.retry, evt)
		f.group.signal()
	case eventstore.NackPark:
		f.group.parked = append(f.group.parked, evt)
	case eventstore.NackSkip:
		// Processed-but-ignored: nothing to record.
	}

	return nil
}

// Close tears down the feed. Events still in flight are scheduled for
// redelivery to the rest of the group.
func (f *persistentFeed) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)

		f.mx.Lock()
		inflight := f.inflight
		f.inflight = make(map[version.Position]event.Persisted)
		f.mx.Unlock()

		f.store.mx.Lock()
		defer f.store.mx.Unlock()

		for _, evt := range inflight {
			f.group.retry = append(f.group.retry, evt)
		}

		if len(inflight) > 0 {
			f.group.signal()
		}
	})

	return nil
}
