package eventstore

import (
	"errors"
	"fmt"
)

// ErrGroupAlreadyExists is returned by CreatePersistentSubscription when
// the consumer group has already been created on the target stream.
//
// Creation races are expected in normal operation: callers should treat
// this error as success, possibly logging it.
var ErrGroupAlreadyExists = errors.New("eventstore: persistent subscription group already exists")

// ErrGroupNotFound is returned when subscribing to a consumer group
// that has not been created.
var ErrGroupNotFound = errors.New("eventstore: persistent subscription group not found")

// ErrFeedClosed is returned by PersistentFeed operations after the feed
// has been closed.
var ErrFeedClosed = errors.New("eventstore: persistent feed is closed")

// ConnectionError reports a transport-level failure while talking
// to the Event Store. It is fatal to the operation that observed it:
// no automatic reconnection is attempted by this module.
//
// ConnectionError values are produced by Store implementations backed by
// a real transport; the in-process store in eventstore/inmemory has no
// transport to fail. Consumers typically observe one as the cause of a
// subscription.SubscriptionError.
type ConnectionError struct {
	Cause error
}

func (err *ConnectionError) Error() string {
	return fmt.Sprintf("eventstore: connection failed, %v", err.Cause)
}

func (err *ConnectionError) Unwrap() error { return err.Cause }
