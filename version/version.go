// Package version contains types to deal with Event Stream versioning,
// both local to a single stream (Version) and global to the whole
// Event Store (Position).
package version

import "fmt"

// Version is the type to specify Event Stream versions, also called
// "stream revisions". Versions start from 1, as they represent the length
// of a single Event Stream.
type Version uint64

// Position is the global position of an Event in the Event Store,
// used as checkpoint value by subscriptions and projections.
//
// Positions are opaque tokens: totally ordered, but not necessarily
// contiguous. Two components are carried, following the commit/prepare
// log positions exposed by Event Store implementations.
type Position struct {
	Commit  uint64
	Prepare uint64
}

// Compare returns -1 if p sorts before the other Position, 0 if they are
// the same Position, and +1 if p sorts after it.
func (p Position) Compare(other Position) int {
	switch {
	case p.Commit < other.Commit:
		return -1
	case p.Commit > other.Commit:
		return 1
	case p.Prepare < other.Prepare:
		return -1
	case p.Prepare > other.Prepare:
		return 1
	default:
		return 0
	}
}

// IsZero returns true if the Position is the zero value, i.e. the start
// of the Event Store global stream.
func (p Position) IsZero() bool {
	return p == Position{}
}

func (p Position) String() string {
	return fmt.Sprintf("C:%d/P:%d", p.Commit, p.Prepare)
}

// SelectFromBeginning is a Selector value that selects all events in an Event Stream.
var SelectFromBeginning = Selector{From: 0}

// Selector specifies which slice of the Event Stream to select when reading
// events from the Event Store.
type Selector struct {
	From Version
}
