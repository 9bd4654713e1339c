package buffer

import (
	"fmt"

	"github.com/c360/ringpipe/errors"
)

// Circular is a fixed-capacity byte ring. Bytes leave in exactly the order they
// were inserted. Circular does no locking of its own: the owner serializes
// access, usually with the same mutex its condition variables use.
type Circular struct {
	data    []byte
	head    int // next read position
	size    int
	stats   *Statistics // ALWAYS initialized for observability
	metrics *ringMetrics
}

// New creates a ring of capacity bytes. A capacity below one cannot be
// allocated and yields ErrResourceExhausted. Returns an error if metrics
// registration fails when requested.
func New(capacity int, opts ...Option) (*Circular, error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: capacity %d", errors.ErrResourceExhausted, capacity),
			"Circular", "New", "allocate ring")
	}

	o := applyOptions(opts...)

	var metrics *ringMetrics
	if o.metricsReg != nil {
		var err error
		metrics, err = newRingMetrics(o.metricsReg, o.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "Circular", "New", "metrics registration")
		}
	}

	return &Circular{
		data:    make([]byte, capacity),
		stats:   NewStatistics(),
		metrics: metrics,
	}, nil
}

// Capacity returns the fixed size of the ring in bytes.
func (c *Circular) Capacity() int {
	return len(c.data)
}

// Occupancy returns the number of bytes currently stored.
func (c *Circular) Occupancy() int {
	return c.size
}

// FreeSpace returns Capacity() - Occupancy().
func (c *Circular) FreeSpace() int {
	return len(c.data) - c.size
}

// Insert appends all of p to the ring, or nothing: if p does not fit
// ErrNoSpace is returned and the ring is unchanged.
func (c *Circular) Insert(p []byte) error {
	if len(p) > c.FreeSpace() {
		c.stats.rejectedInserts.Add(1)
		if c.metrics != nil {
			c.metrics.recordRejected("insert")
		}
		return errors.WrapInvalid(errors.ErrNoSpace, "Circular", "Insert",
			fmt.Sprintf("reserve %d bytes", len(p)))
	}
	if len(p) == 0 {
		return nil
	}

	tail := (c.head + c.size) % len(c.data)
	n := copy(c.data[tail:], p)
	copy(c.data, p[n:])
	c.size += len(p)

	c.stats.insert(len(p), c.size)
	if c.metrics != nil {
		c.metrics.recordInsert(len(p), c.size, len(c.data))
	}
	return nil
}

// Remove takes exactly n bytes from the front of the ring. If fewer than n
// bytes are stored ErrNotEnoughData is returned and the ring is unchanged.
func (c *Circular) Remove(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("negative length %d", n), "Circular", "Remove", "validate length")
	}
	out := make([]byte, n)
	if err := c.RemoveInto(out); err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveInto fills dst from the front of the ring. It fails with
// ErrNotEnoughData, leaving the ring unchanged, if fewer than len(dst) bytes
// are stored.
func (c *Circular) RemoveInto(dst []byte) error {
	if len(dst) > c.size {
		c.stats.rejectedRemoves.Add(1)
		if c.metrics != nil {
			c.metrics.recordRejected("remove")
		}
		return errors.WrapInvalid(errors.ErrNotEnoughData, "Circular", "Remove",
			fmt.Sprintf("take %d of %d bytes", len(dst), c.size))
	}
	if len(dst) == 0 {
		return nil
	}

	n := copy(dst, c.data[c.head:])
	copy(dst[n:], c.data)
	c.head = (c.head + len(dst)) % len(c.data)
	c.size -= len(dst)
	if c.size == 0 {
		c.head = 0
	}

	c.stats.remove(len(dst), c.size)
	if c.metrics != nil {
		c.metrics.recordRemove(len(dst), c.size, len(c.data))
	}
	return nil
}

// Clear discards every stored byte.
func (c *Circular) Clear() {
	c.head = 0
	c.size = 0
	c.stats.clear()
	if c.metrics != nil {
		c.metrics.updateOccupancy(0, len(c.data))
	}
}

// Stats returns the ring's statistics (always available for observability).
func (c *Circular) Stats() *Statistics {
	return c.stats
}
