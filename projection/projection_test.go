package projection_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/get-eventually/go-consumer/event"
	"github.com/get-eventually/go-consumer/internal"
	"github.com/get-eventually/go-consumer/projection"
	"github.com/get-eventually/go-consumer/serde"
	"github.com/get-eventually/go-consumer/version"
)

type order struct {
	Status string
	Amount int
}

type orderPayload struct {
	Amount int `json:"amount"`
}

func newOrderProjection() *projection.Projection[order] {
	payloadSerde := serde.NewJSONDeserializer(func() orderPayload { return orderPayload{} })

	proj := projection.New[order]("orders").
		OnFunc("OrderShipped", func(current order, _ []byte) (order, error) {
			current.Status = "shipped"
			return current, nil
		})

	projection.OnDecoded(proj, "OrderCreated", payloadSerde,
		func(_ order, payload orderPayload) (order, error) {
			return order{Status: "created", Amount: payload.Amount}, nil
		})

	projection.OnDecoded(proj, "ItemAdded", payloadSerde,
		func(current order, payload orderPayload) (order, error) {
			current.Amount += payload.Amount
			return current, nil
		})

	return proj
}

func persisted(streamID string, v uint64, eventType string, payload any) event.Persisted {
	return event.Persisted{
		Envelope: internal.NewEnvelope(eventType, payload),
		StreamID: streamID,
		Version:  version.Version(v),
		Position: version.Position{Commit: v, Prepare: v},
	}
}

func TestProjectionFoldsPerStream(t *testing.T) {
	projection.
		Given[order](
		persisted("order-1", 1, "OrderCreated", map[string]any{"amount": 100}),
		persisted("order-2", 2, "OrderCreated", map[string]any{"amount": 50}),
		persisted("order-1", 3, "ItemAdded", map[string]any{"amount": 25}),
		persisted("order-2", 4, "ItemAdded", map[string]any{"amount": 30}),
		persisted("order-1", 5, "OrderShipped", nil),
	).
		Then("order-1", order{Status: "shipped", Amount: 125}).
		AndThen("order-2", order{Status: "created", Amount: 80}).
		Using(t, newOrderProjection)
}

func TestProjectionIgnoresUnregisteredEventTypes(t *testing.T) {
	ctx := context.Background()
	proj := newOrderProjection()

	applied, err := proj.Apply(ctx, persisted("order-1", 1, "CustomerRegistered", nil))
	require.NoError(t, err)
	assert.False(t, applied)

	_, ok := proj.StateFor("order-1")
	assert.False(t, ok, "ignored events must not materialize state")

	_, folded := proj.Checkpoint()
	assert.False(t, folded, "ignored events must not advance the checkpoint")
}

func TestProjectionCheckpointIsMonotonic(t *testing.T) {
	ctx := context.Background()
	proj := newOrderProjection()

	applied, err := proj.Apply(ctx, persisted("order-1", 3, "OrderCreated", map[string]any{"amount": 100}))
	require.NoError(t, err)
	require.True(t, applied)

	// A redelivered event carrying an older Position folds again, but
	// must not move the checkpoint backwards.
	applied, err = proj.Apply(ctx, persisted("order-2", 2, "OrderCreated", map[string]any{"amount": 50}))
	require.NoError(t, err)
	require.True(t, applied)

	checkpoint, folded := proj.Checkpoint()
	require.True(t, folded)
	assert.Equal(t, version.Position{Commit: 3, Prepare: 3}, checkpoint)
}

func TestProjectionReducerFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	errBoom := errors.New("boom")

	proj := projection.New[order]("orders").
		OnFunc("OrderCreated", func(_ order, data []byte) (order, error) {
			var payload orderPayload
			if err := json.Unmarshal(data, &payload); err != nil {
				return order{}, err
			}

			return order{Status: "created", Amount: payload.Amount}, nil
		}).
		OnFunc("ItemAdded", func(order, []byte) (order, error) {
			return order{}, errBoom
		})

	applied, err := proj.Apply(ctx, persisted("order-1", 1, "OrderCreated", map[string]any{"amount": 100}))
	require.NoError(t, err)
	require.True(t, applied)

	_, err = proj.Apply(ctx, persisted("order-1", 2, "ItemAdded", map[string]any{"amount": 25}))
	require.ErrorIs(t, err, errBoom)

	state, ok := proj.StateFor("order-1")
	require.True(t, ok)
	assert.Equal(t, order{Status: "created", Amount: 100}, state)

	checkpoint, folded := proj.Checkpoint()
	require.True(t, folded)
	assert.Equal(t, version.Position{Commit: 1, Prepare: 1}, checkpoint)
}

func TestProjectionDecodesProtoJSONPayloads(t *testing.T) {
	ctx := context.Background()

	proj := projection.New[order]("orders")

	projection.OnDecoded(proj, "OrderCreated",
		serde.NewProtoJSONDeserializer(func() *structpb.Struct { return new(structpb.Struct) }),
		func(_ order, payload *structpb.Struct) (order, error) {
			return order{
				Status: "created",
				Amount: int(payload.Fields["amount"].GetNumberValue()),
			}, nil
		})

	applied, err := proj.Apply(ctx, persisted("order-1", 1, "OrderCreated", map[string]any{"amount": 100}))
	require.NoError(t, err)
	require.True(t, applied)

	state, ok := proj.StateFor("order-1")
	require.True(t, ok)
	assert.Equal(t, order{Status: "created", Amount: 100}, state)

	// Malformed payloads surface as reducer failures.
	_, err = proj.Apply(ctx, event.Persisted{
		Envelope: event.Envelope{Type: "OrderCreated", Data: []byte("{")},
		StreamID: "order-2",
		Version:  1,
		Position: version.Position{Commit: 2, Prepare: 2},
	})
	assert.Error(t, err)
}
