package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/eventstore"
	"github.com/get-eventually/go-consumer/logger"
	"github.com/get-eventually/go-consumer/subscription/checkpoint"
	"github.com/get-eventually/go-consumer/version"
)

// Subscription represents a named subscription to events coming from an
// Event Store.
//
// Start must be implemented as a synchronous method, returning only when
// the underlying Event Store call fails or the context is canceled.
//
// Checkpoint must be called when an event has finished processing
// successfully, so the subscription can resume from there on restart.
type Subscription interface {
	Name() string
	Start(ctx context.Context, stream event.Stream) error
	Checkpoint(ctx context.Context, evt event.Persisted) error
}

// Default values used by a CatchUp subscription.
const (
	DefaultCatchUpBufferSize = 48
	DefaultPullInterval      = 100 * time.Millisecond
	DefaultMaxPullInterval   = 1 * time.Second
)

var _ Subscription = &CatchUp{}

// CatchUp is a Subscription that processes the whole history of its
// target by periodically pulling the Event Store from the last
// checkpointed global Position, catching up with new commits over time.
type CatchUp struct {
	SubscriptionName string
	Target           eventstore.Target
	Filter           *eventstore.Filter
	EventStore       eventstore.Streamer
	Checkpointer     checkpoint.Checkpointer
	Logger           logger.Logger

	// PullEvery is the minimum interval between two streaming calls
	// to the Event Store. Defaults to DefaultPullInterval.
	PullEvery time.Duration

	// MaxInterval is the maximum interval between two streaming calls
	// to the Event Store, bounding the eventual consistency window.
	// Defaults to DefaultMaxPullInterval.
	MaxInterval time.Duration

	// BufferSize is the size of the buffered channels used while
	// streaming from the Event Store.
	// Defaults to DefaultCatchUpBufferSize.
	BufferSize int
}

// Name is the name of the subscription.
func (s *CatchUp) Name() string { return s.SubscriptionName }

// Start sinks events on the provided stream by pulling the Event Store
// from where the subscription last left off, backing off while the stream
// stays quiet.
func (s *CatchUp) Start(ctx context.Context, stream event.Stream) error {
	defer close(stream)

	lastPosition, err := s.Checkpointer.Read(ctx, s.Name())
	if err != nil {
		return fmt.Errorf("subscription.CatchUp: failed to read checkpoint: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.pullEvery()
	b.MaxInterval = s.maxInterval()
	b.MaxElapsedTime = 0 // Keep pulling forever.

	logger.Debug(s.Logger, "catch-up subscription starting",
		logger.With("name", s.Name()),
		logger.With("lastPosition", lastPosition),
		logger.With("initialPullInterval", b.InitialInterval),
		logger.With("maxPullInterval", b.MaxInterval),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-time.After(b.NextBackOff()):
			newPosition, err := s.catchUp(ctx, stream, lastPosition)
			if err != nil {
				return fmt.Errorf("subscription.CatchUp: failed while streaming: %w", err)
			}

			if newPosition.Compare(lastPosition) > 0 {
				b.Reset()
			}

			lastPosition = newPosition
		}
	}
}

func (s *CatchUp) catchUp(
	ctx context.Context,
	stream event.Stream,
	lastPosition version.Position,
) (version.Position, error) {
	es := make(chan event.Persisted, s.bufferSize())

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.EventStore.Stream(ctx, es, s.target(), lastPosition, s.Filter)
	})

	for evt := range es {
		logger.Debug(s.Logger, "event received",
			logger.With("name", s.Name()),
			logger.With("streamID", evt.StreamID),
			logger.With("version", evt.Version),
			logger.With("position", evt.Position),
		)

		select {
		case stream <- evt:
		case <-ctx.Done():
			return lastPosition, ctx.Err()
		}

		lastPosition = evt.Position
	}

	return lastPosition, group.Wait()
}

// Checkpoint saves the global Position of the processed event through
// the subscription's Checkpointer.
func (s *CatchUp) Checkpoint(ctx context.Context, evt event.Persisted) error {
	if err := s.Checkpointer.Write(ctx, s.Name(), evt.Position); err != nil {
		return fmt.Errorf("subscription.CatchUp: failed to checkpoint subscription: %w", err)
	}

	return nil
}

func (s *CatchUp) target() eventstore.Target {
	if s.Target == nil {
		return eventstore.TargetAll{}
	}

	return s.Target
}

func (s *CatchUp) pullEvery() time.Duration {
	if s.PullEvery <= 0 {
		return DefaultPullInterval
	}

	return s.PullEvery
}

func (s *CatchUp) maxInterval() time.Duration {
	if s.MaxInterval <= 0 {
		return DefaultMaxPullInterval
	}

	return s.MaxInterval
}

func (s *CatchUp) bufferSize() int {
	if s.BufferSize <= 0 {
		return DefaultCatchUpBufferSize
	}

	return s.BufferSize
}
