package fifo

import (
	"log/slog"

	"github.com/c360/ringpipe/metric"
)

// DefaultCapacity is the ring size of the fifo endpoint.
const DefaultCapacity = 50

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger used for session lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithName sets the endpoint name used in logs and metric labels.
func WithName(name string) Option {
	return func(c *Channel) {
		if name != "" {
			c.name = name
		}
	}
}

// WithMetrics exports ring metrics and records session activity in the
// registry's core metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(c *Channel) {
		c.registry = registry
	}
}
