// Package internal contains small helpers shared by test suites
// and examples.
package internal

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/get-eventually/go-consumer/event"
)

// MustJSON marshals the provided value to JSON, panicking on failure.
// Meant for fixtures, where the value is known to be serializable.
func MustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return data
}

// NewEnvelope builds an event.Envelope with a fresh identifier and the
// provided value serialized to JSON as payload.
func NewEnvelope(eventType string, payload any) event.Envelope {
	return event.Envelope{
		ID:   uuid.New(),
		Type: eventType,
		Data: MustJSON(payload),
	}
}
