package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/ringpipe/config"
	"github.com/c360/ringpipe/errors"
	"github.com/c360/ringpipe/fifo"
	"github.com/c360/ringpipe/gateway"
	gwhttp "github.com/c360/ringpipe/gateway/http"
	"github.com/c360/ringpipe/health"
	"github.com/c360/ringpipe/metric"
	"github.com/c360/ringpipe/natsclient"
	"github.com/c360/ringpipe/pipeline"
	"github.com/c360/ringpipe/pkg/retry"
	"github.com/c360/ringpipe/relay"
)

const healthInterval = 10 * time.Second

// daemon owns every long-lived component of ringpiped
type daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *metric.MetricsRegistry
	metrics  *metric.Metrics
	monitor  *health.Monitor

	fifo     *fifo.Channel
	tunables *config.Tunables
	pipeline *pipeline.Pipeline
	gateway  *gwhttp.Gateway

	metricsServer *metric.Server
	nats          *natsclient.Client
	relay         *relay.Relay
}

func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	d := &daemon{
		cfg:      cfg,
		logger:   logger,
		registry: metric.NewMetricsRegistry(),
	}
	d.metrics = d.registry.CoreMetrics()
	d.monitor = health.NewMonitor(d.metrics)

	var err error
	d.fifo, err = fifo.New(cfg.Fifo.Capacity,
		fifo.WithLogger(logger),
		fifo.WithMetrics(d.registry))
	if err != nil {
		return nil, fmt.Errorf("create fifo: %w", err)
	}

	d.tunables, err = config.NewTunables(cfg.Pipeline.Values(), logger)
	if err != nil {
		return nil, fmt.Errorf("create tunables: %w", err)
	}

	d.pipeline, err = pipeline.New(cfg.Pipeline.Capacity, d.tunables,
		pipeline.WithLogger(logger),
		pipeline.WithWorkers(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize),
		pipeline.WithMetrics(d.registry))
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	gwCfg := gateway.DefaultConfig()
	gwCfg.Addr = cfg.Gateway.Addr
	gwCfg.RateLimit = cfg.Gateway.RateLimit
	gwCfg.Burst = cfg.Gateway.Burst
	d.gateway, err = gwhttp.NewGateway(gwCfg, gwhttp.Deps{
		Fifo:     d.fifo,
		Timer:    d.pipeline,
		Tunables: d.tunables,
		Monitor:  d.monitor,
		Metrics:  d.metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	if cfg.Metrics.Enabled {
		d.metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, d.registry)
	}

	if cfg.NATS.Enabled {
		if err := d.setupRelay(); err != nil {
			return nil, err
		}
	}

	d.registerHealth()
	return d, nil
}

func (d *daemon) setupRelay() error {
	client, err := natsclient.NewClient(d.cfg.NATS.URL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(d.cfg.NATS.MaxReconnects),
		natsclient.WithLogger(d.logger),
		natsclient.WithMetrics(d.metrics),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				d.monitor.UpdateHealthy("nats", "connected")
			} else {
				d.monitor.UpdateUnhealthy("nats", "disconnected")
			}
		}))
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	opts := []relay.Option{relay.WithLogger(d.logger)}
	if d.cfg.NATS.Stream != "" {
		opts = append(opts, relay.WithStream(d.cfg.NATS.Stream))
	}
	r, err := relay.New(d.pipeline, client, d.cfg.NATS.Subject, opts...)
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}

	d.nats = client
	d.relay = r
	return nil
}

func (d *daemon) registerHealth() {
	d.monitor.Register("fifo", health.CheckerFunc(func(context.Context) health.Status {
		s := d.fifo.Stats()
		return health.NewHealthy("fifo", "ready").
			WithDetail("producers", s.Producers).
			WithDetail("consumers", s.Consumers).
			WithDetail("occupancy", s.Occupancy)
	}))

	d.monitor.Register("pipeline", health.CheckerFunc(func(context.Context) health.Status {
		s := d.pipeline.Stats()
		status := health.NewHealthy("pipeline", "ready")
		if s.Dropped > 0 && s.Occupancy == s.Capacity {
			status = health.NewDegraded("pipeline", "staging buffer full, values are being dropped")
		}
		return status.
			WithDetail("generated", s.Generated).
			WithDetail("dropped", s.Dropped).
			WithDetail("drains", s.Drains).
			WithDetail("consumer_open", s.ConsumerOpen)
	}))

	d.monitor.Register("gateway", d.gateway)

	if d.relay != nil {
		d.monitor.Register("relay", health.CheckerFunc(func(context.Context) health.Status {
			s := d.relay.Stats()
			status := health.NewHealthy("relay", "relaying")
			if !s.Running {
				status = health.NewDegraded("relay", "not running")
			}
			return status.
				WithDetail("published", s.Published).
				WithDetail("failed", s.Failed).
				WithDetail("nats", d.nats.Status().String())
		}))
	}
}

// run starts every component and blocks until ctx ends or one of them fails
func (d *daemon) run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := d.pipeline.Start(context.Background()); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.gateway.Start(gctx)
	})

	if d.metricsServer != nil {
		g.Go(func() error {
			d.logger.Info("metrics server listening", "address", d.metricsServer.Address())
			return d.metricsServer.Run(gctx)
		})
	}

	if d.relay != nil {
		g.Go(func() error {
			return d.runRelay(gctx)
		})
	}

	g.Go(func() error {
		d.watchHealth(gctx)
		return nil
	})

	d.logger.Info("ringpiped started",
		"gateway", d.cfg.Gateway.Addr,
		"fifo_capacity", d.cfg.Fifo.Capacity,
		"pipeline_capacity", d.cfg.Pipeline.Capacity,
		"nats", d.cfg.NATS.Enabled)

	err := g.Wait()
	if ctx.Err() != nil {
		d.logger.Info("Received shutdown signal")
	}

	if shutdownErr := d.shutdown(shutdownTimeout); shutdownErr != nil {
		err = stderrors.Join(err, fmt.Errorf("graceful shutdown failed: %w", shutdownErr))
	}
	if err == nil {
		d.logger.Info("ringpiped shutdown complete")
	}
	return err
}

// runRelay connects to NATS, retrying transient failures, and relays
// batches until ctx ends
func (d *daemon) runRelay(ctx context.Context) error {
	d.logger.Info("Connecting to NATS", "url", d.nats.URL())

	cfg := retry.Quick()
	cfg.MaxAttempts = 20
	cfg.MaxDelay = 5 * time.Second
	err := retry.Do(ctx, cfg, func() error {
		return d.nats.Connect(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		d.monitor.UpdateUnhealthy("nats", "connect failed")
		return fmt.Errorf("connect to NATS: %w", err)
	}
	d.monitor.UpdateHealthy("nats", "connected")

	if err := d.relay.Run(ctx); err != nil {
		if stderrors.Is(err, errors.ErrTooManyConsumers) {
			d.logger.Warn("pipeline consumer already held, relay not started")
			return nil
		}
		return err
	}
	return nil
}

func (d *daemon) watchHealth(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		d.monitor.Refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// shutdown stops components in reverse start order
func (d *daemon) shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := d.gateway.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := d.pipeline.Stop(timeout); err != nil {
		errs = append(errs, err)
	}
	if d.nats != nil {
		if err := d.nats.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
