package worker

import "errors"

// Errors returned by Pool. ErrNilProcessor is the value NewPool panics with.
var (
	ErrNilProcessor       = errors.New("worker: nil processor")
	ErrPoolAlreadyStarted = errors.New("worker: pool already started")
	ErrPoolNotStarted     = errors.New("worker: pool not started")

	// ErrPoolStopped is returned by Submit after Stop, or once the context
	// given to Start has ended.
	ErrPoolStopped = errors.New("worker: pool stopped")

	// ErrQueueFull is returned when the chosen worker's queue has no room.
	ErrQueueFull = errors.New("worker: queue full")

	// ErrStopTimeout is returned when Stop gives up waiting for the workers.
	ErrStopTimeout = errors.New("worker: timed out waiting for workers")
)
