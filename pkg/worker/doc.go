// Package worker provides a generic worker pool with one bounded queue per
// worker.
//
// Submit spreads work round robin. SubmitTo lets the caller name a preferred
// worker (hint modulo the worker count), so a producer can alternate drains
// between workers while each worker still handles its own items in order.
// Neither call blocks: a full queue returns ErrQueueFull.
//
// Flush waits until every accepted item has been processed, which lets a
// caller tear down shared state knowing no queued work will touch it.
//
//	pool := worker.NewPool[drainTask](2, 16, drainer.Run)
//	if err := pool.Start(ctx); err != nil {
//		return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	_ = pool.SubmitTo(tick%2, drainTask{})
//	_ = pool.Flush(ctx)
//
// The context given to Start is passed to the processor. When it ends the
// pool stops accepting work but keeps processing what is already queued until
// Stop closes the queues.
//
// Statistics are always collected (Stats). WithMetricsRegistry additionally
// exports them under ringpipe_worker_*, labelled with the pool prefix.
//
// Errors returned by the processor are counted, not propagated; the pool is
// for fire-and-forget background work.
package worker
