package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/get-eventually/go-consumer/delivery"
	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/logger"
	"github.com/get-eventually/go-consumer/subscription"
)

// EventSource is the session surface the Runner consumes from: a pull
// interface yielding persisted events plus a disposition channel back.
//
// *subscription.Session implements it, as does the instrumented wrapper
// in the otelconsumer package.
type EventSource interface {
	Next(ctx context.Context) (event.Persisted, error)
	Disposition(ctx context.Context, id delivery.ID, action delivery.Action) error
}

// Runner drives an Applier from a persistent subscription session,
// translating every fold outcome into the correct disposition:
// Ack on a successful fold, Skip on events the projection does not care
// about, Park on reducer failures.
//
// Retrying failed events is deliberately left to callers with domain
// knowledge of which failures are transient; the Runner treats every
// failure as permanent.
type Runner struct {
	Session EventSource
	Applier Applier
	Logger  logger.Logger
}

// Run consumes the session until it closes or the context is canceled.
//
// Run is a blocking call. A closed or draining session is normal
// termination: Run returns nil. Any other session failure, or a failed
// disposition, aborts the run with an error.
func (r Runner) Run(ctx context.Context) error {
	for {
		evt, err := r.Session.Next(ctx)

		var duplicate delivery.DuplicateDeliveryError
		if errors.As(err, &duplicate) {
			// The event is already in flight under the same identity:
			// the original delivery owns the disposition.
			logger.Info(r.Logger, "skipping duplicate delivery",
				logger.With("id", duplicate.ID),
			)

			continue
		}

		switch {
		case errors.Is(err, subscription.ErrSessionClosed),
			errors.Is(err, subscription.ErrSessionDraining):
			return nil
		case err != nil:
			return fmt.Errorf("projection.Runner: session failed: %w", err)
		}

		id := delivery.IDOf(evt)

		action := delivery.ActionAck

		applied, err := r.Applier.Apply(ctx, evt)

		switch {
		case err != nil:
			logger.Error(r.Logger, "failed to apply event, parking",
				logger.With("id", id),
				logger.With("error", err),
			)

			action = delivery.ActionPark
		case !applied:
			action = delivery.ActionSkip
		}

		if err := r.Session.Disposition(ctx, id, action); err != nil {
			return fmt.Errorf("projection.Runner: failed to disposition event %s: %w", id, err)
		}
	}
}
