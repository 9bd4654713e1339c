package fifo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/ringpipe/errors"
	"github.com/c360/ringpipe/metric"
	"github.com/c360/ringpipe/pkg/buffer"
)

// Channel is a bounded byte fifo shared by any number of producers and
// consumers. Writes and reads block on condition variables until their
// predicate holds, the peer side disappears, or the caller's context ends.
type Channel struct {
	mu   sync.Mutex
	ring *buffer.Circular

	producers int
	consumers int

	// arrivals count every Open per role, so a peer that opened and closed
	// while Open was waiting still completes the rendezvous
	prodArrivals uint64
	consArrivals uint64

	// producers wait on prodQ, consumers on consQ
	prodQ *sync.Cond
	consQ *sync.Cond

	waitingProducers int
	waitingConsumers int

	name     string
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *metric.Metrics
}

// Stats is a point-in-time view of a Channel.
type Stats struct {
	Producers        int                 `json:"producers"`
	Consumers        int                 `json:"consumers"`
	WaitingProducers int                 `json:"waiting_producers"`
	WaitingConsumers int                 `json:"waiting_consumers"`
	Occupancy        int                 `json:"occupancy"`
	Capacity         int                 `json:"capacity"`
	Ring             buffer.StatsSummary `json:"ring"`
}

// New creates a channel backed by a ring of capacity bytes.
func New(capacity int, opts ...Option) (*Channel, error) {
	c := &Channel{
		name:   "fifo",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	var ringOpts []buffer.Option
	if c.registry != nil {
		ringOpts = append(ringOpts, buffer.WithMetrics(c.registry, c.name))
		c.metrics = c.registry.CoreMetrics()
	}

	ring, err := buffer.New(capacity, ringOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Channel", "New", "create ring")
	}
	c.ring = ring
	c.prodQ = sync.NewCond(&c.mu)
	c.consQ = sync.NewCond(&c.mu)
	c.logger = c.logger.With("endpoint", c.name)

	return c, nil
}

// Capacity returns the ring size in bytes.
func (c *Channel) Capacity() int {
	return c.ring.Capacity()
}

// Open registers a new party with the given role and blocks until at least
// one party of the opposite role is open, or one has opened since the call.
// If ctx ends first the registration is rolled back and an error matching
// ErrInterrupted is returned.
func (c *Channel) Open(ctx context.Context, role Role) (*Session, error) {
	if role != Producer && role != Consumer {
		return nil, errors.WrapInvalid(fmt.Errorf("unknown role %d", role), "Channel", "Open", "validate role")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	start := time.Now()
	switch role {
	case Producer:
		c.producers++
		c.prodArrivals++
		c.consQ.Broadcast()
		seen := c.consArrivals
		err = c.wait(ctx, c.prodQ, &c.waitingProducers, func() bool {
			return c.consumers > 0 || c.consArrivals != seen
		})
	case Consumer:
		c.consumers++
		c.consArrivals++
		c.prodQ.Broadcast()
		seen := c.prodArrivals
		err = c.wait(ctx, c.consQ, &c.waitingConsumers, func() bool {
			return c.producers > 0 || c.prodArrivals != seen
		})
	}
	c.observeWait("open", start)

	if err != nil {
		c.releaseLocked(role)
		c.logger.Debug("open interrupted", "role", role.String())
		return nil, errors.Interrupted(ctx, "Channel", "Open", "wait for peer")
	}

	s := newSession(c, role)
	if c.metrics != nil {
		c.metrics.RecordSessionOpened(c.name, role.String())
	}
	c.logger.Debug("session opened", "role", role.String(), "session_id", s.ID(),
		"producers", c.producers, "consumers", c.consumers)
	return s, nil
}

// Write inserts all of p, waiting for enough free space. A write larger than
// the ring fails with ErrNoSpace. If no consumer is open, before or during
// the wait, it fails with ErrBrokenConnection and nothing is written.
func (c *Channel) Write(ctx context.Context, p []byte) (int, error) {
	if len(p) > c.ring.Capacity() {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: %d bytes exceeds capacity %d", errors.ErrNoSpace, len(p), c.ring.Capacity()),
			"Channel", "Write", "validate length")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	err := c.wait(ctx, c.prodQ, &c.waitingProducers, func() bool {
		return c.consumers == 0 || c.ring.FreeSpace() >= len(p)
	})
	c.observeWait("write", start)
	if err != nil {
		return 0, errors.Interrupted(ctx, "Channel", "Write", "wait for space")
	}
	if c.consumers == 0 {
		return 0, errors.WrapTransient(errors.ErrBrokenConnection, "Channel", "Write", "deliver to consumers")
	}

	if err := c.ring.Insert(p); err != nil {
		return 0, errors.Wrap(err, "Channel", "Write", "insert")
	}
	if c.metrics != nil {
		c.metrics.RecordBytes(c.name, "in", len(p))
	}
	c.consQ.Broadcast()
	return len(p), nil
}

// Read removes n bytes, waiting until that many are stored. Once every
// producer has closed, Read returns whatever remains (possibly fewer than n
// bytes) and then end-of-stream, reported as a nil slice with a nil error.
// A read larger than the ring fails with ErrNoSpace.
func (c *Channel) Read(ctx context.Context, n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("negative length %d", n), "Channel", "Read", "validate length")
	}
	if n > c.ring.Capacity() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %d bytes exceeds capacity %d", errors.ErrNoSpace, n, c.ring.Capacity()),
			"Channel", "Read", "validate length")
	}
	if n == 0 {
		return []byte{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	err := c.wait(ctx, c.consQ, &c.waitingConsumers, func() bool {
		return c.producers == 0 || c.ring.Occupancy() >= n
	})
	c.observeWait("read", start)
	if err != nil {
		return nil, errors.Interrupted(ctx, "Channel", "Read", "wait for data")
	}

	if occ := c.ring.Occupancy(); occ < n {
		if occ == 0 {
			return nil, nil
		}
		n = occ
	}

	p, err := c.ring.Remove(n)
	if err != nil {
		return nil, errors.Wrap(err, "Channel", "Read", "remove")
	}
	if c.metrics != nil {
		c.metrics.RecordBytes(c.name, "out", n)
	}
	c.prodQ.Broadcast()
	return p, nil
}

// Close deregisters one party of the given role. Every waiter of both roles
// re-evaluates its predicate. When the last party of both roles is gone the
// ring is emptied.
func (c *Channel) Close(role Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case role == Producer && c.producers > 0:
	case role == Consumer && c.consumers > 0:
	default:
		return errors.WrapInvalid(fmt.Errorf("no open %s", role), "Channel", "Close", "release session")
	}

	c.releaseLocked(role)
	if c.metrics != nil {
		c.metrics.RecordSessionClosed(c.name, role.String())
	}
	c.logger.Debug("session closed", "role", role.String(),
		"producers", c.producers, "consumers", c.consumers)
	return nil
}

// Stats returns a snapshot of the channel state.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Producers:        c.producers,
		Consumers:        c.consumers,
		WaitingProducers: c.waitingProducers,
		WaitingConsumers: c.waitingConsumers,
		Occupancy:        c.ring.Occupancy(),
		Capacity:         c.ring.Capacity(),
		Ring:             c.ring.Stats().Summary(),
	}
}

// releaseLocked decrements the role count, wakes everyone and clears the ring
// once the channel is idle. c.mu must be held.
func (c *Channel) releaseLocked(role Role) {
	if role == Producer {
		c.producers--
	} else {
		c.consumers--
	}
	c.prodQ.Broadcast()
	c.consQ.Broadcast()

	if c.producers == 0 && c.consumers == 0 {
		c.ring.Clear()
	}
}

// wait blocks on cond until done reports true or ctx ends. c.mu must be held.
// The cancellation callback takes c.mu before broadcasting, so a cancel can
// never slip in between the ctx check and cond.Wait.
func (c *Channel) wait(ctx context.Context, cond *sync.Cond, waiting *int, done func() bool) error {
	if done() {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		cond.Broadcast()
		c.mu.Unlock()
	})
	defer stop()

	*waiting++
	defer func() { *waiting-- }()

	for !done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		cond.Wait()
	}
	return nil
}

func (c *Channel) observeWait(operation string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordWait(c.name, operation, time.Since(start))
	}
}
