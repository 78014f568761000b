// Package checkpoint exposes the Checkpointer interface used by catch-up
// subscriptions to persist and resume their position in the global stream.
package checkpoint

import (
	"context"

	"github.com/get-eventually/go-consumer/version"
)

// Checkpointer persists the highest global Position successfully processed
// by a named subscription, so consumption can resume from there.
type Checkpointer interface {
	Read(ctx context.Context, key string) (version.Position, error)
	Write(ctx context.Context, key string, pos version.Position) error
}

// Nop is a Checkpointer that never persists anything: subscriptions using
// it always restart from the beginning of the stream.
type Nop struct{}

// Read always returns the zero Position.
func (Nop) Read(context.Context, string) (version.Position, error) {
	return version.Position{}, nil
}

// Write is a no-op.
func (Nop) Write(context.Context, string, version.Position) error { return nil }

// Fixed is a Checkpointer that always resumes from the given Position
// and never persists updates. Useful for volatile subscriptions that are
// only interested in events committed after they start.
type Fixed struct {
	StartingFrom version.Position
}

// Read returns the fixed starting Position.
func (f Fixed) Read(context.Context, string) (version.Position, error) {
	return f.StartingFrom, nil
}

// Write is a no-op.
func (Fixed) Write(context.Context, string, version.Position) error { return nil }
