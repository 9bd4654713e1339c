package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by ringpipe.
const Namespace = "ringpipe"

// Metrics contains the process-wide metrics shared by every endpoint
type Metrics struct {
	// Endpoint metrics
	SessionsOpen   *prometheus.GaugeVec
	BytesTotal     *prometheus.CounterVec
	EndpointErrors *prometheus.CounterVec
	WaitDuration   *prometheus.HistogramVec
	RequestsTotal  *prometheus.CounterVec

	// Pipeline metrics
	ValuesGenerated prometheus.Counter
	ValuesDropped   prometheus.Counter
	DrainsTotal     prometheus.Counter
	DrainBatchSize  prometheus.Histogram

	HealthCheckStatus *prometheus.GaugeVec

	// NATS metrics
	NATSConnected      prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "endpoint",
				Name:      "sessions_open",
				Help:      "Number of open sessions per endpoint and role",
			},
			[]string{"endpoint", "role"},
		),

		BytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "endpoint",
				Name:      "bytes_total",
				Help:      "Bytes moved through an endpoint",
			},
			[]string{"endpoint", "direction"},
		),

		EndpointErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "endpoint",
				Name:      "errors_total",
				Help:      "Errors returned by an endpoint, by error class",
			},
			[]string{"endpoint", "class"},
		),

		WaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "endpoint",
				Name:      "wait_duration_seconds",
				Help:      "Time spent blocked waiting for a peer, data or space",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint", "operation"},
		),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Gateway requests by route and status code",
			},
			[]string{"route", "code"},
		),

		ValuesGenerated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "pipeline",
				Name:      "values_generated_total",
				Help:      "Values produced by the periodic producer",
			},
		),

		ValuesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "pipeline",
				Name:      "values_dropped_total",
				Help:      "Values dropped because the staging buffer was full",
			},
		),

		DrainsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "pipeline",
				Name:      "drains_total",
				Help:      "Drain runs executed",
			},
		),

		DrainBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "pipeline",
				Name:      "drain_batch_values",
				Help:      "Values moved to the list per drain run",
				Buckets:   prometheus.LinearBuckets(0, 2, 11),
			},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.SessionsOpen,
		c.BytesTotal,
		c.EndpointErrors,
		c.WaitDuration,
		c.RequestsTotal,
		c.ValuesGenerated,
		c.ValuesDropped,
		c.DrainsTotal,
		c.DrainBatchSize,
		c.HealthCheckStatus,
		c.NATSConnected,
		c.NATSReconnects,
		c.NATSCircuitBreaker,
	}
}

// RecordSessionOpened increments the open session gauge
func (c *Metrics) RecordSessionOpened(endpoint, role string) {
	c.SessionsOpen.WithLabelValues(endpoint, role).Inc()
}

// RecordSessionClosed decrements the open session gauge
func (c *Metrics) RecordSessionClosed(endpoint, role string) {
	c.SessionsOpen.WithLabelValues(endpoint, role).Dec()
}

// RecordBytes adds n to the byte counter for an endpoint direction ("in" or "out")
func (c *Metrics) RecordBytes(endpoint, direction string, n int) {
	c.BytesTotal.WithLabelValues(endpoint, direction).Add(float64(n))
}

// RecordError increments the error counter
func (c *Metrics) RecordError(endpoint, class string) {
	c.EndpointErrors.WithLabelValues(endpoint, class).Inc()
}

// RecordWait records time spent blocked
func (c *Metrics) RecordWait(endpoint, operation string, d time.Duration) {
	c.WaitDuration.WithLabelValues(endpoint, operation).Observe(d.Seconds())
}

// RecordRequest increments the gateway request counter
func (c *Metrics) RecordRequest(route, code string) {
	c.RequestsTotal.WithLabelValues(route, code).Inc()
}

// RecordValueGenerated increments the produced value counter
func (c *Metrics) RecordValueGenerated() {
	c.ValuesGenerated.Inc()
}

// RecordValueDropped increments the dropped value counter
func (c *Metrics) RecordValueDropped() {
	c.ValuesDropped.Inc()
}

// RecordDrain records one drain run that moved n values
func (c *Metrics) RecordDrain(n int) {
	c.DrainsTotal.Inc()
	c.DrainBatchSize.Observe(float64(n))
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}
