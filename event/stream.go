package event

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Stream is the write side of a channel of Persisted events,
// used by Event Store implementations to lazily produce events.
//
// Producers must close the channel when the stream is exhausted
// or the call fails.
type Stream chan<- Persisted

// StreamToSlice synchronously exhausts an event stream to a Persisted slice,
// and returns an error if the stream origin, passed here as a closure,
// fails with an error.
func StreamToSlice(ctx context.Context, f func(ctx context.Context, stream Stream) error) ([]Persisted, error) {
	ch := make(chan Persisted, 1)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return f(ctx, ch) })

	var events []Persisted
	for evt := range ch {
		events = append(events, evt)
	}

	return events, group.Wait()
}
