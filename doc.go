// Package ringpipe provides a bounded circular byte buffer with blocking
// multi-party producer/consumer synchronization, and a threshold-triggered
// drain pipeline built on top of it.
//
// # Architecture
//
// Two endpoints share the same building blocks:
//
//	fifo:      producers ──Write──▶ [ring, 50 bytes] ──Read──▶ consumers
//	modtimer:  timer ──4-byte value──▶ [ring, 40 bytes] ──threshold──▶ drain worker ──▶ list ──▶ consumer
//
// A third endpoint, modconfig, reads and updates the modtimer tunables
// (period, threshold, value bound) with a line-oriented "key value" text
// format.
//
// # Packages
//
//   - pkg/buffer: the circular byte buffer. Not safe for concurrent use on
//     its own; callers hold their own lock.
//   - fifo: Channel, a multi-producer multi-consumer byte fifo with
//     condition-variable waits, rendezvous on Open and end-of-stream once
//     every producer has gone.
//   - pipeline: the periodic producer, the drainer running on pkg/worker,
//     the blocking List and the single-session Consumer.
//   - config: daemon configuration loading (JSON/YAML, schema, environment)
//     and the runtime Tunables.
//   - gateway, gateway/http: the HTTP and WebSocket surface for the three
//     endpoints, plus /stats and /health.
//   - relay, natsclient: optional forwarding of every drained batch to NATS.
//   - errors, metric, health, pkg/retry: shared infrastructure.
//
// # Error Handling
//
// Every operation returns errors built with the errors package. Callers test
// conditions with the standard library:
//
//	if errors.Is(err, rperrors.ErrTooManyConsumers) {
//	    // somebody else holds the modtimer session
//	}
//
// Errors also carry a class (transient, invalid or fatal) that the gateway
// maps to HTTP status codes and pkg/retry uses to decide whether to retry.
//
// # Running
//
// cmd/ringpiped wires everything together:
//
//	ringpiped --config=ringpipe.yaml --log-format=text
package ringpipe
