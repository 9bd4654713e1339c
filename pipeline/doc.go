// Package pipeline implements the timer driven drain pipeline.
//
// A periodic producer writes random 4-byte values into a small staging ring.
// When the ring's occupancy reaches the emergency threshold a drain is queued
// on a worker pool; the drain moves every whole value into a List that the
// single open Consumer reads from.
//
//	tunables, _ := config.NewTunables(config.DefaultValues(), logger)
//	p, _ := pipeline.New(pipeline.DefaultCapacity, tunables)
//	_ = p.Start(ctx)
//	c, _ := p.Open(ctx)
//	defer c.Close()
//	values, err := c.Read(ctx)
//
// Lock order: slotMu before bufMu. drainMu is taken before bufMu and never
// while holding slotMu. The list has its own lock and is never held together
// with bufMu.
package pipeline
