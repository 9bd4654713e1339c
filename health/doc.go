// Package health tracks the health of the daemon's components.
//
// Components report a Status that is healthy, degraded or unhealthy. A
// Monitor keeps the latest status per component, either pushed with Update
// or pulled from a registered Checker on Refresh, and combines them with
// Aggregate: any unhealthy component makes the whole unhealthy, otherwise
// any degraded component makes it degraded.
//
//	monitor := health.NewMonitor(registry.CoreMetrics())
//	monitor.Register("pipeline", health.CheckerFunc(func(ctx context.Context) health.Status {
//		return health.NewHealthy("pipeline", "running")
//	}))
//	status := monitor.AggregateHealth(ctx, "ringpiped")
//
// Messages built with FromError are sanitized: URLs, paths, IP addresses,
// ports and credentials are replaced with placeholders.
package health
