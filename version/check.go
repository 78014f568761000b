package version

import "fmt"

// Any avoids optimistic concurrency checks when appending to an Event Stream,
// disregarding its current state.
var Any = CheckAny{}

// Check can be used to perform optimistic concurrency checks when
// appending events to an Event Stream.
//
// Please note: this is a marker interface. The only two valid variants
// are CheckAny and CheckExact.
type Check interface {
	isVersionCheck()
}

// CheckAny is a Check variant that disregards the current version
// of an Event Stream.
type CheckAny struct{}

func (CheckAny) isVersionCheck() {}

// CheckExact is a Check variant that expects the Event Stream to be
// at the specified version.
type CheckExact Version

func (CheckExact) isVersionCheck() {}

// ConflictError is returned by an Event Store when appending events using
// an expected stream version that does not match the actual version
// of the Event Stream.
type ConflictError struct {
	Expected Version
	Actual   Version
}

func (err ConflictError) Error() string {
	return fmt.Sprintf(
		"version: conflict detected, expected stream version: %d, actual: %d",
		err.Expected, err.Actual,
	)
}
