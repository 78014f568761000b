package eventstore

import "strings"

// SystemPrefix is the prefix reserved for system streams and event types.
const SystemPrefix = "$"

// Filter restricts the events produced by a Streamer or Subscriber call.
//
// Filters are evaluated by the Event Store, not by this module: the
// filter value is serialized into the subscription request. The Matches
// method documents (and, for in-process stores, implements) the exact
// predicate semantics.
//
// A nil *Filter matches every event.
type Filter struct {
	// StreamPrefixes, when non-empty, restricts events to streams whose
	// identifier starts with at least one of the prefixes.
	StreamPrefixes []string

	// EventTypePrefixes, when non-empty, restricts events to types
	// starting with at least one of the prefixes.
	EventTypePrefixes []string

	// ExcludeSystem drops events from system-reserved streams and
	// system-reserved event types (identifiers starting with "$").
	ExcludeSystem bool
}

// ExcludeSystemEvents returns a Filter that only drops system events,
// the most common filter for user-facing projections.
func ExcludeSystemEvents() *Filter {
	return &Filter{ExcludeSystem: true}
}

// Matches reports whether an event with the given stream identifier and
// event type passes the filter.
func (f *Filter) Matches(streamID, eventType string) bool {
	if f == nil {
		return true
	}

	if f.ExcludeSystem && (strings.HasPrefix(streamID, SystemPrefix) || strings.HasPrefix(eventType, SystemPrefix)) {
		return false
	}

	if len(f.StreamPrefixes) > 0 && !hasAnyPrefix(streamID, f.StreamPrefixes) {
		return false
	}

	if len(f.EventTypePrefixes) > 0 && !hasAnyPrefix(eventType, f.EventTypePrefixes) {
		return false
	}

	return true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}
