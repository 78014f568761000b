// Package consumer is a client-side toolkit for consuming event streams
// from an event store.
//
// It provides the building blocks a subscriber application needs once the
// events leave the store: immutable event envelopes (package event),
// in-flight delivery tracking with exactly-one-disposition semantics
// (package delivery), persistent consumer-group sessions and catch-up
// subscriptions (package subscription), and in-memory projections folded
// from the event stream (package projection).
//
// The event store itself is an external collaborator, abstracted by the
// interfaces in package eventstore. A complete in-memory implementation is
// available in eventstore/inmemory, which is also used by the test suites
// and the runnable examples.
package consumer
