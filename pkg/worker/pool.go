// Package worker provides a generic worker pool with per-worker queues
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/ringpipe/metric"
)

// Pool runs a fixed set of workers, each draining its own queue. Work can be
// spread round robin with Submit or steered to a preferred worker with SubmitTo.
type Pool[T any] struct {
	// Configuration
	workers   int
	queueSize int
	processor func(context.Context, T) error

	// Runtime state
	queues  []chan T
	next    atomic.Uint64
	ctx     context.Context
	metrics *Metrics
	wg      *sync.WaitGroup
	quit    chan struct{}

	// Lifecycle management
	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	// pending counts accepted items not yet finished; guarded by flushMu
	flushMu   sync.Mutex
	flushCond *sync.Cond
	pending   int

	// Statistics (atomic)
	submitted int64
	processed int64
	failed    int64
	dropped   int64

	// Metrics configuration
	metricsRegistry *metric.MetricsRegistry
	metricsPrefix   string
}

// Metrics holds Prometheus metrics for worker pool monitoring
type Metrics struct {
	queueDepth     prometheus.Gauge
	utilization    prometheus.Gauge
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime prometheus.Histogram
}

// Option represents a configuration option for the worker pool
type Option[T any] func(*Pool[T])

// WithMetricsRegistry configures the pool to register metrics with the registry
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(p *Pool[T]) {
		p.metricsRegistry = registry
		p.metricsPrefix = prefix
	}
}

// NewPool creates a pool of workers, each with a queue of queueSize items.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	pool := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		queues:    make([]chan T, workers),
	}
	for i := range pool.queues {
		pool.queues[i] = make(chan T, queueSize)
	}
	pool.flushCond = sync.NewCond(&pool.flushMu)

	for _, opt := range opts {
		opt(pool)
	}

	if pool.metricsRegistry != nil && pool.metricsPrefix != "" {
		pool.metrics = newMetrics(pool.metricsRegistry, pool.metricsPrefix)
	}

	return pool
}

// newMetrics registers the pool's collectors. Metrics stay disabled if any
// registration is refused.
func newMetrics(registry *metric.MetricsRegistry, prefix string) *Metrics {
	labels := prometheus.Labels{"pool": prefix}
	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace, Subsystem: "worker", Name: "queue_depth",
			ConstLabels: labels, Help: "Items waiting across all worker queues",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace, Subsystem: "worker", Name: "utilization",
			ConstLabels: labels, Help: "Queued items over total queue capacity (0-1)",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: "worker", Name: "submitted_total",
			ConstLabels: labels, Help: "Total work items accepted",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: "worker", Name: "processed_total",
			ConstLabels: labels, Help: "Total work items processed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: "worker", Name: "failed_total",
			ConstLabels: labels, Help: "Total work items that failed processing",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: "worker", Name: "dropped_total",
			ConstLabels: labels, Help: "Total work items refused because a queue was full",
		}),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metric.Namespace, Subsystem: "worker", Name: "processing_duration_seconds",
			ConstLabels: labels, Help: "Time spent processing work items",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
	}

	const component = "worker_pool"
	registrations := []error{
		registry.RegisterGauge(component, prefix+"_queue_depth", m.queueDepth),
		registry.RegisterGauge(component, prefix+"_utilization", m.utilization),
		registry.RegisterCounter(component, prefix+"_submitted_total", m.submitted),
		registry.RegisterCounter(component, prefix+"_processed_total", m.processed),
		registry.RegisterCounter(component, prefix+"_failed_total", m.failed),
		registry.RegisterCounter(component, prefix+"_dropped_total", m.dropped),
		registry.RegisterHistogram(component, prefix+"_processing_duration_seconds", m.processingTime),
	}
	for _, err := range registrations {
		if err != nil {
			return nil
		}
	}
	return m
}

// Submit queues work on the next worker in round-robin order. Returns
// ErrQueueFull without blocking if that worker's queue is full.
func (p *Pool[T]) Submit(work T) error {
	return p.SubmitTo(int(p.next.Add(1)-1), work)
}

// SubmitTo queues work on worker hint modulo the worker count.
func (p *Pool[T]) SubmitTo(hint int, work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped || p.ctx.Err() != nil {
		return ErrPoolStopped
	}

	if hint < 0 {
		hint = -hint
	}
	queue := p.queues[hint%p.workers]

	p.flushMu.Lock()
	p.pending++
	p.flushMu.Unlock()

	select {
	case queue <- work:
		atomic.AddInt64(&p.submitted, 1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
		}
		return nil
	default:
		p.finish()
		atomic.AddInt64(&p.dropped, 1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Flush blocks until every item accepted before the call has been processed,
// or ctx ends.
func (p *Pool[T]) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	if p.pending == 0 {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		p.flushMu.Lock()
		p.flushCond.Broadcast()
		p.flushMu.Unlock()
	})
	defer stop()

	for p.pending > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.flushCond.Wait()
	}
	return nil
}

func (p *Pool[T]) finish() {
	p.flushMu.Lock()
	p.pending--
	if p.pending == 0 {
		p.flushCond.Broadcast()
	}
	p.flushMu.Unlock()
}

// Start starts the workers. ctx is handed to the processor; once it ends the
// pool refuses new work, but items already queued are still processed so that
// Flush returns.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.ctx = ctx
	p.wg = &sync.WaitGroup{}
	p.quit = make(chan struct{})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	if p.metrics != nil {
		p.wg.Add(1)
		go p.metricsUpdater(ctx)
	}

	p.started = true
	return nil
}

// Stop closes the queues and waits for the workers to drain them
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}
	p.stopped = true
	close(p.quit)

	for _, q := range p.queues {
		close(q)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: p.queueDepth(),
		Submitted:  atomic.LoadInt64(&p.submitted),
		Processed:  atomic.LoadInt64(&p.processed),
		Failed:     atomic.LoadInt64(&p.failed),
		Dropped:    atomic.LoadInt64(&p.dropped),
	}
}

// PoolStats represents worker pool statistics
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) queueDepth() int {
	depth := 0
	for _, q := range p.queues {
		depth += len(q)
	}
	return depth
}

// worker processes items from its own queue until Stop closes it
func (p *Pool[T]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for work := range p.queues[id] {
		p.process(ctx, work)
	}
}

func (p *Pool[T]) process(ctx context.Context, work T) {
	defer p.finish()

	start := time.Now()
	err := p.processor(ctx, work)
	duration := time.Since(start)

	atomic.AddInt64(&p.processed, 1)
	if err != nil {
		atomic.AddInt64(&p.failed, 1)
	}

	if p.metrics != nil {
		p.metrics.processed.Inc()
		if err != nil {
			p.metrics.failed.Inc()
		}
		p.metrics.processingTime.Observe(duration.Seconds())
	}
}

// metricsUpdater periodically updates utilization and queue depth metrics
func (p *Pool[T]) metricsUpdater(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case <-ticker.C:
			depth := float64(p.queueDepth())
			p.metrics.queueDepth.Set(depth)
			p.metrics.utilization.Set(depth / float64(p.queueSize*p.workers))
		}
	}
}
