package projection

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/logger"
	"github.com/get-eventually/go-consumer/subscription"
)

// DefaultCatchUpRunnerBufferSize is the default size for the buffered
// channels opened by a CatchUpRunner instance, if not specified.
const DefaultCatchUpRunnerBufferSize = 32

// CatchUpRunner orchestrates the state update of an Applier using a
// checkpointed catch-up subscription: events flow from the subscription
// to the Applier, and every event the Applier handled without error is
// checkpointed, so a restarted runner resumes where it left off.
type CatchUpRunner struct {
	Applier      Applier
	Subscription subscription.Subscription
	Logger       logger.Logger
	BufferSize   int
}

// Run starts listening to events from the provided Subscription and
// sinking them into the Applier to trigger state change.
//
// Run is a blocking call, exiting when either the Applier fails or the
// Subscription stops. To stop the runner, cancel the provided context;
// the context.Canceled error returned in that case usually represents
// normal termination.
func (r CatchUpRunner) Run(ctx context.Context) error {
	bufferSize := r.BufferSize
	if bufferSize == 0 {
		bufferSize = DefaultCatchUpRunnerBufferSize
	}

	eventStream := make(chan event.Persisted, bufferSize)
	toCheckpoint := make(chan event.Persisted, bufferSize)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := r.Subscription.Start(ctx, eventStream); err != nil {
			return fmt.Errorf("projection.CatchUpRunner: subscription exited with error: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		defer close(toCheckpoint)

		for evt := range eventStream {
			applied, err := r.Applier.Apply(ctx, evt)
			if err != nil {
				return fmt.Errorf("projection.CatchUpRunner: failed to apply event: %w", err)
			}

			if !applied {
				logger.Debug(r.Logger, "event ignored by projection",
					logger.With("subscription", r.Subscription.Name()),
					logger.With("eventType", evt.Type),
				)
			}

			// Ignored events are checkpointed too: the projection does not
			// care about them, so there is no point replaying them on restart.
			toCheckpoint <- evt
		}

		return nil
	})

	for evt := range toCheckpoint {
		if err := r.Subscription.Checkpoint(ctx, evt); err != nil {
			return fmt.Errorf("projection.CatchUpRunner: failed to checkpoint event: %w", err)
		}
	}

	return group.Wait()
}
