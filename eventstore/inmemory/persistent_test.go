package inmemory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/eventstore"
	"github.com/get-eventually/go-consumer/eventstore/inmemory"
	"github.com/get-eventually/go-consumer/internal"
	"github.com/get-eventually/go-consumer/version"
)

func TestCreatePersistentSubscription(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewEventStore()

	err := store.CreatePersistentSubscription(ctx, "orders", "order-processor", eventstore.GroupOptions{})
	require.NoError(t, err)

	err = store.CreatePersistentSubscription(ctx, "orders", "order-processor", eventstore.GroupOptions{})
	assert.ErrorIs(t, err, eventstore.ErrGroupAlreadyExists)

	_, err = store.SubscribeToPersistentSubscription(ctx, "orders", "unknown-group")
	assert.ErrorIs(t, err, eventstore.ErrGroupNotFound)
}

func TestPersistentFeedDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewEventStore()

	require.NoError(t,
		store.CreatePersistentSubscription(ctx, "orders", "order-processor", eventstore.GroupOptions{}))

	_, err := store.Append(ctx, "orders", version.Any,
		internal.NewEnvelope("OrderCreated", map[string]any{"amount": 10}),
		internal.NewEnvelope("OrderCreated", map[string]any{"amount": 20}),
	)
	require.NoError(t, err)

	feed, err := store.SubscribeToPersistentSubscription(ctx, "orders", "order-processor")
	require.NoError(t, err)

	defer func() { require.NoError(t, feed.Close()) }()

	first, err := feed.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, version.Version(1), first.Version)
	require.NoError(t, feed.Ack(ctx, first))

	second, err := feed.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, version.Version(2), second.Version)
	require.NoError(t, feed.Ack(ctx, second))

	// No third event: Next must respect the context deadline.
	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err = feed.Next(timeoutCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPersistentFeedNackRetryRedelivers(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewEventStore()

	require.NoError(t,
		store.CreatePersistentSubscription(ctx, "orders", "order-processor", eventstore.GroupOptions{}))

	_, err := store.Append(ctx, "orders", version.Any,
		internal.NewEnvelope("OrderCreated", map[string]any{"amount": 30}),
	)
	require.NoError(t, err)

	feed, err := store.SubscribeToPersistentSubscription(ctx, "orders", "order-processor")
	require.NoError(t, err)

	defer func() { require.NoError(t, feed.Close()) }()

	evt, err := feed.Next(ctx)
	require.NoError(t, err)

	require.NoError(t, feed.Nack(ctx, evt, eventstore.NackRetry, "transient failure"))

	redelivered, err := feed.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, evt.Position, redelivered.Position)

	require.NoError(t, feed.Ack(ctx, redelivered))
}

func TestPersistentFeedNackParkAndSkip(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewEventStore()

	require.NoError(t,
		store.CreatePersistentSubscription(ctx, "orders", "order-processor", eventstore.GroupOptions{}))

	_, err := store.Append(ctx, "orders", version.Any,
		internal.NewEnvelope("OrderCreated", map[string]any{"amount": 21}),
		internal.NewEnvelope("OrderCreated", map[string]any{"amount": 16}),
	)
	require.NoError(t, err)

	feed, err := store.SubscribeToPersistentSubscription(ctx, "orders", "order-processor")
	require.NoError(t, err)

	defer func() { require.NoError(t, feed.Close()) }()

	parked, err := feed.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, feed.Nack(ctx, parked, eventstore.NackPark, "permanent failure"))

	skipped, err := feed.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, feed.Nack(ctx, skipped, eventstore.NackSkip, "invalid data"))

	parkedEvents := store.ParkedEvents("orders", "order-processor")
	require.Len(t, parkedEvents, 1)
	assert.Equal(t, parked.Position, parkedEvents[0].Position)
}

func TestPersistentFeedCompetingConsumers(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewEventStore()

	require.NoError(t,
		store.CreatePersistentSubscription(ctx, "orders", "order-processor", eventstore.GroupOptions{}))

	_, err := store.Append(ctx, "orders", version.Any,
		internal.NewEnvelope("OrderCreated", map[string]any{"amount": 1}),
		internal.NewEnvelope("OrderCreated", map[string]any{"amount": 2}),
	)
	require.NoError(t, err)

	first, err := store.SubscribeToPersistentSubscription(ctx, "orders", "order-processor")
	require.NoError(t, err)

	second, err := store.SubscribeToPersistentSubscription(ctx, "orders", "order-processor")
	require.NoError(t, err)

	evt1, err := first.Next(ctx)
	require.NoError(t, err)

	evt2, err := second.Next(ctx)
	require.NoError(t, err)

	// The two consumers compete: each event is delivered exactly once.
	assert.NotEqual(t, evt1.Position, evt2.Position)

	require.NoError(t, first.Ack(ctx, evt1))
	require.NoError(t, second.Ack(ctx, evt2))
	require.NoError(t, first.Close())
	require.NoError(t, second.Close())
}

func TestPersistentFeedCloseRequeuesInflight(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewEventStore()

	require.NoError(t,
		store.CreatePersistentSubscription(ctx, "orders", "order-processor", eventstore.GroupOptions{}))

	_, err := store.Append(ctx, "orders", version.Any,
		internal.NewEnvelope("OrderCreated", map[string]any{"amount": 5}),
	)
	require.NoError(t, err)

	feed, err := store.SubscribeToPersistentSubscription(ctx, "orders", "order-processor")
	require.NoError(t, err)

	evt, err := feed.Next(ctx)
	require.NoError(t, err)

	require.NoError(t, feed.Close())

	_, err = feed.Next(ctx)
	assert.ErrorIs(t, err, eventstore.ErrFeedClosed)

	// A new consumer picks up the abandoned in-flight event.
	replacement, err := store.SubscribeToPersistentSubscription(ctx, "orders", "order-processor")
	require.NoError(t, err)

	defer func() { require.NoError(t, replacement.Close()) }()

	redelivered, err := replacement.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, evt.Position, redelivered.Position)
}

func TestPersistentSubscriptionStartFrom(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewEventStore()

	_, err := store.Append(ctx, "orders", version.Any,
		internal.NewEnvelope("OrderCreated", map[string]any{"amount": 1}),
	)
	require.NoError(t, err)

	events, err := event.StreamToSlice(ctx, func(ctx context.Context, stream event.Stream) error {
		return store.Read(ctx, stream, "orders", version.SelectFromBeginning, 0)
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	// A group created from the current end of the stream only sees
	// events committed afterwards.
	require.NoError(t, store.CreatePersistentSubscription(ctx, "orders", "late-processor",
		eventstore.GroupOptions{StartFrom: events[0].Position}))

	_, err = store.Append(ctx, "orders", version.Any,
		internal.NewEnvelope("OrderShipped", map[string]any{}),
	)
	require.NoError(t, err)

	feed, err := store.SubscribeToPersistentSubscription(ctx, "orders", "late-processor")
	require.NoError(t, err)

	defer func() { require.NoError(t, feed.Close()) }()

	evt, err := feed.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OrderShipped", evt.Type)
	require.NoError(t, feed.Ack(ctx, evt))
}

func TestPersistentSubscriptionFilter(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewEventStore()

	require.NoError(t, store.CreatePersistentSubscription(ctx, inmemory.AllStreams, "shipping",
		eventstore.GroupOptions{
			Filter: &eventstore.Filter{
				EventTypePrefixes: []string{"OrderShipped"},
				ExcludeSystem:     true,
			},
		}))

	_, err := store.Append(ctx, "orders", version.Any,
		internal.NewEnvelope("OrderCreated", map[string]any{"amount": 10}),
		internal.NewEnvelope("OrderShipped", map[string]any{}),
	)
	require.NoError(t, err)

	_, err = store.Append(ctx, "$settings", version.Any,
		internal.NewEnvelope("OrderShipped", map[string]any{}),
	)
	require.NoError(t, err)

	feed, err := store.SubscribeToPersistentSubscription(ctx, inmemory.AllStreams, "shipping")
	require.NoError(t, err)

	defer func() { require.NoError(t, feed.Close()) }()

	// Only the non-system OrderShipped event passes the filter.
	evt, err := feed.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OrderShipped", evt.Type)
	assert.Equal(t, "orders", evt.StreamID)
	require.NoError(t, feed.Ack(ctx, evt))

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err = feed.Next(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
