// Package http serves the fifo, modtimer and modconfig endpoints over HTTP
// and WebSocket.
package http

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/c360/ringpipe/errors"
	"github.com/c360/ringpipe/gateway"
	"github.com/c360/ringpipe/health"
	"github.com/c360/ringpipe/metric"
)

// Deps are the endpoints the gateway serves. Monitor and Metrics may be nil.
type Deps struct {
	Fifo     gateway.FifoEndpoint
	Timer    gateway.TimerEndpoint
	Tunables gateway.ConfigEndpoint
	Monitor  *health.Monitor
	Metrics  *metric.Metrics
	Logger   *slog.Logger
}

// Gateway is the daemon's HTTP server
type Gateway struct {
	config   gateway.Config
	fifo     gateway.FifoEndpoint
	timer    gateway.TimerEndpoint
	tunables gateway.ConfigEndpoint
	monitor  *health.Monitor
	metrics  *metric.Metrics
	logger   *slog.Logger
	limiter  *rate.Limiter
	upgrader websocket.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	requestsTotal  atomic.Uint64
	requestsFailed atomic.Uint64
	wsOpen         atomic.Int64
}

// NewGateway validates cfg and builds a gateway over deps
func NewGateway(cfg gateway.Config, deps Deps) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Gateway", "NewGateway", "config validation")
	}
	if deps.Fifo == nil || deps.Timer == nil || deps.Tunables == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Gateway", "NewGateway", "endpoints are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		config:   cfg,
		fifo:     deps.Fifo,
		timer:    deps.Timer,
		tunables: deps.Tunables,
		monitor:  deps.Monitor,
		metrics:  deps.Metrics,
		logger:   logger.With("component", "gateway"),
		limiter:  rate.NewLimiter(rate.Inf, 0),
	}
	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g, nil
}

// RegisterHTTPHandlers registers every route under prefix
func (g *Gateway) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	route := func(pattern, path string, h http.HandlerFunc) {
		mux.Handle(pattern+" "+prefix+path, g.wrap(path, h))
	}

	route("POST", "fifo", g.handleFifoWrite)
	route("GET", "fifo", g.handleFifoRead)
	route("GET", "fifo/ws", g.handleFifoWS)
	route("GET", "modtimer", g.handleModtimer)
	route("GET", "modtimer/ws", g.handleModtimerWS)
	route("GET", "modconfig", g.handleConfigRead)
	route("POST", "modconfig", g.handleConfigWrite)
	route("GET", "stats", g.handleStats)
	route("GET", "health", g.handleHealth)

	if g.config.EnableCORS {
		route("OPTIONS", "{path...}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

// Handler returns a mux serving every route at the root
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	g.RegisterHTTPHandlers("/", mux)
	return mux
}

// Start listens on the configured address and serves until ctx ends or
// Stop is called. It returns nil on a clean shutdown.
func (g *Gateway) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Addr)
	if err != nil {
		return errors.WrapFatal(err, "Gateway", "Start", "listen")
	}

	g.mu.Lock()
	if g.server != nil {
		g.mu.Unlock()
		_ = ln.Close()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Gateway", "Start", "start server")
	}
	g.server = &http.Server{
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	g.listener = ln
	server := g.server
	g.mu.Unlock()

	g.logger.Info("gateway listening", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = g.Stop(shutdownCtx)
	})
	defer stop()

	if err := server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.WrapTransient(err, "Gateway", "Start", "serve")
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	server := g.server
	g.mu.Unlock()
	if server == nil {
		return nil
	}

	if err := server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Gateway", "Stop", "shutdown server")
	}
	return nil
}

// Addr returns the bound address once Start is listening
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return g.config.Addr
	}
	return g.listener.Addr().String()
}

// Health reports the gateway as a health component
func (g *Gateway) Health(_ context.Context) health.Status {
	g.mu.Lock()
	running := g.server != nil
	g.mu.Unlock()

	status := health.NewHealthy("gateway", "serving")
	if !running {
		status = health.NewUnhealthy("gateway", "not started")
	}
	return status.
		WithDetail("requests", g.requestsTotal.Load()).
		WithDetail("failed", g.requestsFailed.Load()).
		WithDetail("websockets", g.wsOpen.Load())
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || !g.config.EnableCORS {
		return true
	}
	return g.originAllowed(origin)
}

func (g *Gateway) originAllowed(origin string) bool {
	for _, allowed := range g.config.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
