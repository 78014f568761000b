package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/get-eventually/go-consumer/delivery"
	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/eventstore"
	"github.com/get-eventually/go-consumer/logger"
)

// SessionState is the lifecycle state of a Session.
type SessionState uint8

const (
	// SessionIdle marks a session created but not yet pulling events.
	SessionIdle SessionState = iota

	// SessionActive marks a session currently delivering events.
	SessionActive

	// SessionDraining marks a session that stopped pulling new events
	// and is waiting for its in-flight events to be dispositioned.
	SessionDraining

	// SessionClosed marks a terminated session. All further calls are
	// rejected with ErrSessionClosed.
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionActive:
		return "active"
	case SessionDraining:
		return "draining"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrSessionClosed is returned by Session calls issued after the session
// has terminated.
var ErrSessionClosed = errors.New("subscription: session is closed")

// ErrSessionDraining is returned by Session.Next once a Stop disposition
// has been issued: no new events are delivered while draining.
var ErrSessionDraining = errors.New("subscription: session is draining")

// SubscriptionError reports that the feed behind a Session failed.
// The session is closed abruptly: in-flight events are abandoned and the
// Event Store redelivers them on reconnection.
type SubscriptionError struct {
	Group string
	Cause error
}

func (err *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription: feed for group %q terminated, %v", err.Group, err.Cause)
}

func (err *SubscriptionError) Unwrap() error { return err.Cause }

// Session is a durable, at-least-once pull interface over a persistent
// subscription group, cooperating with a delivery.Tracker to enforce
// exactly one disposition per delivered event.
//
// The zero value is not usable; open a Session with Open.
type Session struct {
	streamID string
	group    string
	feed     eventstore.PersistentFeed
	tracker  *delivery.Tracker
	logger   logger.Logger

	mx    sync.Mutex
	state SessionState
}

// SessionOption configures a Session at Open time.
type SessionOption func(*Session)

// WithLogger attaches a logger to the Session.
func WithLogger(l logger.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithTracker uses the provided delivery.Tracker instead of a fresh one,
// e.g. to share backpressure accounting with the caller.
func WithTracker(t *delivery.Tracker) SessionOption {
	return func(s *Session) { s.tracker = t }
}

// Open subscribes to the specified persistent subscription group and
// returns an Idle session over it.
func Open(
	ctx context.Context,
	es eventstore.PersistentSubscriber,
	streamID, group string,
	opts ...SessionOption,
) (*Session, error) {
	feed, err := es.SubscribeToPersistentSubscription(ctx, streamID, group)
	if err != nil {
		return nil, fmt.Errorf("subscription: failed to open session for group %q: %w", group, err)
	}

	s := &Session{
		streamID: streamID,
		group:    group,
		feed:     feed,
		tracker:  delivery.NewTracker(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// State returns the current lifecycle state of the session.
func (s *Session) State() SessionState {
	s.mx.Lock()
	defer s.mx.Unlock()

	return s.state
}

// Tracker returns the delivery.Tracker backing this session.
func (s *Session) Tracker() *delivery.Tracker { return s.tracker }

// Outstanding returns the number of delivered events still awaiting
// a disposition.
func (s *Session) Outstanding() int { return s.tracker.Outstanding() }

// Next suspends until the feed produces the next event, records it as
// in-flight, and returns it. It is the only suspension point of the
// session; canceling the context closes the session without side effects
// on already-acknowledged events.
//
// A feed failure surfaces as *SubscriptionError and closes the session
// abruptly. A duplicate delivery is returned together with a
// delivery.DuplicateDeliveryError: the event is usable, but it is already
// in flight under the same identity.
func (s *Session) Next(ctx context.Context) (event.Persisted, error) {
	s.mx.Lock()

	switch s.state {
	case SessionClosed:
		s.mx.Unlock()
		return event.Persisted{}, ErrSessionClosed
	case SessionDraining:
		s.mx.Unlock()
		return event.Persisted{}, ErrSessionDraining
	case SessionIdle:
		s.state = SessionActive
	case SessionActive:
	}

	s.mx.Unlock()

	// The feed call happens outside the session lock: Next may suspend
	// indefinitely and dispositions must remain possible meanwhile.
	evt, err := s.feed.Next(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.close()
			return event.Persisted{}, fmt.Errorf("subscription: session canceled, %w", ctxErr)
		}

		// A concurrent Close tears the feed down under a blocked Next:
		// that is clean termination, not a feed failure.
		s.mx.Lock()
		alreadyClosed := s.state == SessionClosed
		s.mx.Unlock()

		if alreadyClosed {
			return event.Persisted{}, ErrSessionClosed
		}

		s.close()

		return event.Persisted{}, &SubscriptionError{Group: s.group, Cause: err}
	}

	if _, err := s.tracker.Record(evt); err != nil {
		logger.Error(s.logger, "duplicate delivery received from feed",
			logger.With("group", s.group),
			logger.With("streamID", evt.StreamID),
			logger.With("version", evt.Version),
		)

		return evt, err
	}

	logger.Debug(s.logger, "event delivered",
		logger.With("group", s.group),
		logger.With("streamID", evt.StreamID),
		logger.With("version", evt.Version),
		logger.With("position", evt.Position),
	)

	return evt, nil
}

// Disposition applies the consumer's decision for a delivered event:
// terminal decisions (Ack, Park, Skip) are recorded by the tracker and
// forwarded to the feed, Retry only bumps the attempt count and leaves
// reprocessing to the caller, and Stop moves the session to Draining.
//
// A Draining session closes as soon as its last in-flight event reaches
// a terminal state.
func (s *Session) Disposition(ctx context.Context, id delivery.ID, action delivery.Action) error {
	s.mx.Lock()

	if s.state == SessionClosed {
		s.mx.Unlock()
		return ErrSessionClosed
	}

	s.mx.Unlock()

	if action == delivery.ActionStop {
		return s.stop()
	}

	entry, err := s.tracker.Disposition(id, action)
	if err != nil {
		return err
	}

	logger.Debug(s.logger, "disposition recorded",
		logger.With("group", s.group),
		logger.With("id", id),
		logger.With("action", action),
		logger.With("attempts", entry.Attempts),
	)

	if action == delivery.ActionRetry {
		return nil
	}

	if err := s.forward(ctx, entry.Event, action); err != nil {
		s.close()
		return &SubscriptionError{Group: s.group, Cause: err}
	}

	if err := s.tracker.Resolve(id); err != nil {
		return err
	}

	s.closeIfDrained()

	return nil
}

// forward communicates a terminal disposition to the feed.
func (s *Session) forward(ctx context.Context, evt event.Persisted, action delivery.Action) error {
	switch action {
	case delivery.ActionAck:
		return s.feed.Ack(ctx, evt)
	case delivery.ActionPark:
		return s.feed.Nack(ctx, evt, eventstore.NackPark, "parked by consumer")
	case delivery.ActionSkip:
		return s.feed.Nack(ctx, evt, eventstore.NackSkip, "skipped by consumer")
	default:
		return nil
	}
}

func (s *Session) stop() error {
	s.mx.Lock()

	// Re-checked under the lock: a concurrent Close may have landed
	// after the caller's state check, and a Closed session must never
	// re-enter Draining.
	switch s.state {
	case SessionClosed:
		s.mx.Unlock()
		return ErrSessionClosed
	case SessionDraining:
		s.mx.Unlock()
		return nil
	case SessionIdle, SessionActive:
	}

	s.state = SessionDraining
	s.mx.Unlock()

	logger.Info(s.logger, "session draining",
		logger.With("group", s.group),
		logger.With("outstanding", s.tracker.Outstanding()),
	)

	s.closeIfDrained()

	return nil
}

func (s *Session) closeIfDrained() {
	s.mx.Lock()
	draining := s.state == SessionDraining
	s.mx.Unlock()

	if draining && s.tracker.Outstanding() == 0 {
		s.close()
	}
}

func (s *Session) close() {
	s.mx.Lock()

	if s.state == SessionClosed {
		s.mx.Unlock()
		return
	}

	s.state = SessionClosed
	s.mx.Unlock()

	if err := s.feed.Close(); err != nil {
		logger.Error(s.logger, "failed to close feed",
			logger.With("group", s.group),
			logger.With("error", err),
		)
	}

	logger.Info(s.logger, "session closed", logger.With("group", s.group))
}

// Close terminates the session abruptly, regardless of in-flight events.
// The Event Store redelivers abandoned events to the group.
func (s *Session) Close() error {
	s.close()
	return nil
}
