// Package errors provides standardized error handling patterns for ringpipe components.
//
// # Overview
//
// Every error that crosses a component boundary is classified into one of three
// classes: Transient (temporary, the caller may retry), Invalid (bad input or a
// request that cannot be served in the current state), and Fatal (unrecoverable).
// The gateway uses the class and the sentinel to choose a response status.
//
// # Sentinels
//
// The buffer, channel and pipeline packages report their conditions through the
// following variables. Callers test them with errors.Is:
//
//   - Capacity: ErrNoSpace, ErrNotEnoughData, ErrResourceExhausted
//   - Blocking waits: ErrInterrupted, ErrBrokenConnection
//   - Sessions: ErrTooManyConsumers, ErrSessionClosed
//   - Configuration: ErrInvalidConfig, ErrMissingConfig
//   - Connections: ErrNoConnection, ErrConnectionLost, ErrConnectionTimeout, ErrCircuitOpen
//
// # Error Wrapping Pattern
//
// All error wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions set the classification while wrapping:
//
//	errors.WrapTransient(err, "Channel", "Write", "wait for space")
//	errors.WrapInvalid(err, "Tunables", "SetThreshold", "validate")
//	errors.WrapFatal(err, "Daemon", "Run", "start gateway")
//
// Wrap keeps whatever class the wrapped error already carries.
//
// A blocking wait that observes cancellation returns Interrupted(ctx, ...), which
// matches both ErrInterrupted and the context's own error:
//
//	if err := ch.Write(ctx, p); errors.Is(err, errors.ErrInterrupted) {
//	    // the caller gave up waiting
//	}
//
// # Context Cancellation
//
// context.DeadlineExceeded and context.Canceled are classified as Transient.
//
// # Thread Safety
//
// All classification and wrapping operations are safe for concurrent use.
// ClassifiedError values are immutable after creation.
package errors
