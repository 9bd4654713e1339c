package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/ringpipe/metric"
)

// ringMetrics holds Prometheus metrics for ring operations.
type ringMetrics struct {
	bytesIn  prometheus.Counter
	bytesOut prometheus.Counter
	rejected *prometheus.CounterVec

	occupancy   prometheus.Gauge
	utilization prometheus.Gauge
}

// newRingMetrics creates and registers ring metrics with the provided registry.
func newRingMetrics(registry *metric.MetricsRegistry, prefix string) (*ringMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &ringMetrics{
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "ring",
			Name:        "bytes_in_total",
			ConstLabels: labels,
			Help:        "Total bytes inserted into the ring",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "ring",
			Name:        "bytes_out_total",
			ConstLabels: labels,
			Help:        "Total bytes removed from the ring",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "ring",
			Name:        "rejected_total",
			ConstLabels: labels,
			Help:        "Operations refused for lack of space or data",
		}, []string{"operation"}),
		occupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "ring",
			Name:        "occupancy_bytes",
			ConstLabels: labels,
			Help:        "Bytes currently stored in the ring",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "ring",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Ring utilization as a fraction (0.0 to 1.0)",
		}),
	}

	if err := registry.RegisterCounter(prefix, "ring_bytes_in", m.bytesIn); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "ring_bytes_out", m.bytesOut); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "ring_rejected", m.rejected); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "ring_occupancy", m.occupancy); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "ring_utilization", m.utilization); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *ringMetrics) recordInsert(n, occupancy, capacity int) {
	m.bytesIn.Add(float64(n))
	m.updateOccupancy(occupancy, capacity)
}

func (m *ringMetrics) recordRemove(n, occupancy, capacity int) {
	m.bytesOut.Add(float64(n))
	m.updateOccupancy(occupancy, capacity)
}

func (m *ringMetrics) recordRejected(operation string) {
	m.rejected.WithLabelValues(operation).Inc()
}

func (m *ringMetrics) updateOccupancy(occupancy, capacity int) {
	m.occupancy.Set(float64(occupancy))
	m.utilization.Set(float64(occupancy) / float64(capacity))
}
