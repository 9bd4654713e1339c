// Package metric owns the Prometheus registry for a ringpipe process.
//
// NewMetricsRegistry creates a private prometheus.Registry carrying the Go
// runtime collectors and the core Metrics shared by every endpoint (open
// sessions, bytes moved, wait durations, pipeline drains, NATS state).
// Components that need their own collectors register them through the
// MetricsRegistrar methods, keyed "component.metric"; a second registration
// under the same key, or a Prometheus name conflict, is classified as invalid.
//
// Server exposes the registry over HTTP using promhttp:
//
//	registry := metric.NewMetricsRegistry()
//	srv := metric.NewServer(9090, "/metrics", registry)
//	go srv.Start()
//	defer srv.Stop()
package metric
