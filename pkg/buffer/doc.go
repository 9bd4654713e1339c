// Package buffer provides a fixed-capacity circular byte ring with built-in
// statistics tracking and optional Prometheus metrics integration.
//
// # Overview
//
// Circular stores bytes between a producer and a consumer. Inserts are all or
// nothing: a slice that does not fit in the free space is refused with
// errors.ErrNoSpace and the ring is left untouched. Removes are exact: asking
// for more bytes than are stored fails with errors.ErrNotEnoughData. Bytes come
// out in exactly the order they went in, across any number of wrap-arounds.
//
// # Quick Start
//
//	ring, err := buffer.New(50)
//	if err != nil {
//		return err
//	}
//
//	_ = ring.Insert([]byte("hello"))
//	p, err := ring.Remove(5) // "hello"
//
// With metrics:
//
//	ring, err := buffer.New(40, buffer.WithMetrics(registry, "modtimer"))
//
// # Concurrency
//
// Circular is NOT safe for concurrent use. The fifo and pipeline packages wrap
// it in their own mutex, and the same mutex backs the condition variables that
// wait on Occupancy and FreeSpace. Statistics are atomic and may be read from
// any goroutine.
//
// # Observability
//
// Statistics are always collected (inserts, removes, bytes in and out,
// rejected operations, clears, current and peak occupancy). WithMetrics
// additionally exports bytes, rejections and occupancy to Prometheus under
// the ringpipe_ring_* family, labelled with the component prefix.
package buffer
