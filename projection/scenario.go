package projection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-consumer/event"
)

// Given starts a new projection test scenario from the provided
// event history.
func Given[T any](events ...event.Persisted) Scenario[T] {
	return Scenario[T]{given: events}
}

// Scenario is a Given-Then style test helper for projections: fold a
// fixed event history, then assert on the resulting stream states.
type Scenario[T any] struct {
	given []event.Persisted
}

// Then adds an expectation on the folded state of a stream.
func (s Scenario[T]) Then(streamID string, want T) ScenarioThen[T] {
	return ScenarioThen[T]{given: s.given}.AndThen(streamID, want)
}

// ScenarioThen holds the expected stream states of a scenario.
type ScenarioThen[T any] struct {
	given []event.Persisted
	want  []expectedState[T]
}

type expectedState[T any] struct {
	streamID string
	state    T
}

// AndThen adds another expectation on the folded state of a stream.
func (s ScenarioThen[T]) AndThen(streamID string, want T) ScenarioThen[T] {
	s.want = append(s.want, expectedState[T]{streamID: streamID, state: want})
	return s
}

// Using runs the scenario against a fresh projection built
// by the provided factory.
func (s ScenarioThen[T]) Using(t *testing.T, factory func() *Projection[T]) {
	t.Helper()

	ctx := context.Background()
	proj := factory()

	for _, evt := range s.given {
		_, err := proj.Apply(ctx, evt)
		require.NoError(t, err)
	}

	for _, want := range s.want {
		state, ok := proj.StateFor(want.streamID)
		if assert.True(t, ok, "no state folded for stream %q", want.streamID) {
			assert.Equal(t, want.state, state)
		}
	}
}
