package pipeline

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/ringpipe/config"
	"github.com/c360/ringpipe/errors"
	"github.com/c360/ringpipe/metric"
	"github.com/c360/ringpipe/pkg/buffer"
	"github.com/c360/ringpipe/pkg/worker"
)

// DefaultCapacity is the staging buffer size in bytes.
const DefaultCapacity = 40

// closeTimeout bounds how long Consumer.Close waits for queued drains.
const closeTimeout = 5 * time.Second

// Pipeline moves timer-generated values through a small staging ring into a
// List. A drain is scheduled on the worker pool whenever the ring reaches the
// emergency threshold. At most one consumer session may be open at a time.
type Pipeline struct {
	// bufMu guards ring; held only for O(1) ring operations
	bufMu sync.Mutex
	ring  *buffer.Circular

	// pending is set while a drain is queued or running
	pending atomic.Bool
	// drainMu serializes drain runs so batches reach the list in order
	drainMu sync.Mutex

	list     *List
	pool     *worker.Pool[drainTask]
	tunables *config.Tunables

	slotMu  sync.Mutex
	active  *Consumer
	started bool
	runCtx  context.Context

	scheduled atomic.Uint64
	generated atomic.Int64
	dropped   atomic.Int64
	drains    atomic.Int64
	drained   atomic.Int64

	randFn   func(bound uint32) uint32
	workers  int
	queue    int
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *metric.Metrics
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithWorkers sets the drain pool size and per-worker queue length
func WithWorkers(workers, queueSize int) Option {
	return func(p *Pipeline) {
		p.workers = workers
		p.queue = queueSize
	}
}

// WithMetrics exports ring, worker and pipeline metrics to registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(p *Pipeline) {
		p.registry = registry
	}
}

// WithRand replaces the value generator. fn must return a value in [0, bound).
func WithRand(fn func(bound uint32) uint32) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.randFn = fn
		}
	}
}

// Stats is a point-in-time view of a Pipeline
type Stats struct {
	Occupancy    int   `json:"occupancy"`
	Capacity     int   `json:"capacity"`
	DrainPending bool  `json:"drain_pending"`
	Listed       int   `json:"listed"`
	Generated    int64 `json:"generated"`
	Dropped      int64 `json:"dropped"`
	Drains       int64 `json:"drains"`
	Drained      int64 `json:"drained"`
	ConsumerOpen bool  `json:"consumer_open"`
}

// New creates a pipeline with a staging ring of capacity bytes, reading its
// period, threshold and value bound from tunables on every tick.
func New(capacity int, tunables *config.Tunables, opts ...Option) (*Pipeline, error) {
	if tunables == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Pipeline", "New", "tunables required")
	}

	p := &Pipeline{
		list:     NewList(),
		tunables: tunables,
		randFn:   rand.Uint32N,
		workers:  2,
		queue:    16,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = p.logger.With("endpoint", "modtimer")

	var ringOpts []buffer.Option
	var poolOpts []worker.Option[drainTask]
	if p.registry != nil {
		p.metrics = p.registry.CoreMetrics()
		ringOpts = append(ringOpts, buffer.WithMetrics(p.registry, "modtimer"))
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[drainTask](p.registry, "drain"))
	}

	ring, err := buffer.New(capacity, ringOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Pipeline", "New", "create staging ring")
	}
	p.ring = ring
	p.pool = worker.NewPool(p.workers, p.queue, p.drain, poolOpts...)

	return p, nil
}

// Start launches the drain workers. Sessions can be opened afterwards, until
// ctx ends: then the open session is closed and Open refuses new ones.
func (p *Pipeline) Start(ctx context.Context) error {
	p.slotMu.Lock()
	defer p.slotMu.Unlock()

	if p.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Pipeline", "Start", "start workers")
	}
	if err := p.pool.Start(ctx); err != nil {
		return errors.WrapFatal(err, "Pipeline", "Start", "start workers")
	}
	p.started = true
	p.runCtx = ctx

	context.AfterFunc(ctx, p.closeActive)
	return nil
}

// closeActive closes the open session, if any
func (p *Pipeline) closeActive() {
	p.slotMu.Lock()
	active := p.active
	p.slotMu.Unlock()

	if active == nil {
		return
	}
	if err := active.Close(); err != nil {
		p.logger.Warn("closing consumer", "session_id", active.ID(), "error", err)
	}
}

// Stop closes any open session and stops the drain workers.
func (p *Pipeline) Stop(timeout time.Duration) error {
	p.closeActive()

	if err := p.pool.Stop(timeout); err != nil {
		return errors.WrapTransient(err, "Pipeline", "Stop", "stop workers")
	}
	return nil
}

// Capacity returns the staging ring size in bytes
func (p *Pipeline) Capacity() int {
	return p.ring.Capacity()
}

// Stats returns a snapshot of the pipeline state
func (p *Pipeline) Stats() Stats {
	p.bufMu.Lock()
	occ := p.ring.Occupancy()
	p.bufMu.Unlock()

	p.slotMu.Lock()
	open := p.active != nil
	p.slotMu.Unlock()

	return Stats{
		Occupancy:    occ,
		Capacity:     p.ring.Capacity(),
		DrainPending: p.pending.Load(),
		Listed:       p.list.Len(),
		Generated:    p.generated.Load(),
		Dropped:      p.dropped.Load(),
		Drains:       p.drains.Load(),
		Drained:      p.drained.Load(),
		ConsumerOpen: open,
	}
}

// reset empties the ring and list and clears the pending flag
func (p *Pipeline) reset() {
	p.bufMu.Lock()
	p.ring.Clear()
	p.pending.Store(false)
	p.bufMu.Unlock()
	p.list.Clear()
}
