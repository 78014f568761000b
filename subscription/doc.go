// Package subscription implements the consumer-side sessions over an
// Event Store: persistent (competing-consumer) sessions with
// acknowledgement semantics, and checkpoint-based catch-up subscriptions.
package subscription
