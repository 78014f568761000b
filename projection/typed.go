package projection

import (
	"fmt"

	"github.com/get-eventually/go-consumer/serde"
)

// OnDecoded registers a reducer for the specified event type that decodes
// the raw event payload through the provided deserializer before folding,
// so reducers can work on typed payloads instead of byte slices.
//
// A decoding failure is surfaced as a reducer failure: state and
// checkpoint are left untouched.
func OnDecoded[T, E any](
	p *Projection[T],
	eventType string,
	deserializer serde.Deserializer[E, []byte],
	reduce func(current T, payload E) (T, error),
) *Projection[T] {
	return p.On(eventType, ReducerFunc[T](func(current T, data []byte) (T, error) {
		payload, err := deserializer.Deserialize(data)
		if err != nil {
			return current, fmt.Errorf("projection: failed to decode %q payload, %w", eventType, err)
		}

		return reduce(current, payload)
	}))
}
