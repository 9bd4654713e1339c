package buffer

import (
	"github.com/c360/ringpipe/metric"
)

// Option configures a Circular using the functional options pattern.
type Option func(*options)

// options holds internal configuration for ring instances.
// Statistics are ALWAYS collected - they are not an option.
type options struct {
	// metricsReg is optional - if provided, ring statistics are also exposed as Prometheus metrics
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is used as the component label for Prometheus metrics
	metricsPrefix string
}

// WithMetrics enables Prometheus metrics export for ring statistics.
// If registry is nil or prefix is empty, this option is ignored.
func WithMetrics(registry *metric.MetricsRegistry, prefix string) Option {
	return func(opts *options) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
