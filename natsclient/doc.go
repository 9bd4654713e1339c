// Package natsclient wraps a single NATS connection for the relay.
//
// Client adds a circuit breaker around Connect: after a configurable number
// of consecutive failures the circuit opens and Connect fails fast with
// errors.ErrCircuitOpen until an exponentially growing backoff has passed.
// Once connected, reconnection is left to nats.go and reported through
// Status, the health callback and the ringpipe_nats_* metrics.
//
// Publish sends core NATS messages; EnsureStream and PublishToStream use
// JetStream when the relay is configured with a stream.
//
// NewTestClient starts a throwaway server in a container for integration
// tests, which are built with the integration tag.
package natsclient
