package http

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/c360/ringpipe/config"
	"github.com/c360/ringpipe/errors"
	"github.com/c360/ringpipe/fifo"
	"github.com/c360/ringpipe/health"
)

// handleFifoWrite opens a producer session, writes the body in
// capacity-sized chunks and closes the session.
func (g *Gateway) handleFifoWrite(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, g.config.MaxRequestSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if int64(len(body)) > g.config.MaxRequestSize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body exceeds maximum size")
		return
	}

	ctx := r.Context()
	session, err := g.fifo.Open(ctx, fifo.Producer)
	if err != nil {
		g.fail(w, r, "fifo", err)
		return
	}
	defer session.Close()

	n, err := session.Writer(ctx).Write(body)
	if err != nil {
		g.fail(w, r, "fifo", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": session.ID(),
		"written": n,
	})
}

// handleFifoRead opens a consumer session and performs one read of n bytes.
// End of stream is 204 No Content.
func (g *Gateway) handleFifoRead(w http.ResponseWriter, r *http.Request) {
	n, err := readSize(r, g.fifo.Capacity())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if n > g.fifo.Capacity() {
		writeError(w, http.StatusRequestEntityTooLarge, messageFor(http.StatusRequestEntityTooLarge, nil))
		return
	}

	ctx := r.Context()
	session, err := g.fifo.Open(ctx, fifo.Consumer)
	if err != nil {
		g.fail(w, r, "fifo", err)
		return
	}
	defer session.Close()

	data, err := session.Read(ctx, n)
	if err != nil {
		g.fail(w, r, "fifo", err)
		return
	}
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Session-ID", session.ID())
	_, _ = w.Write(data)
}

// readSize parses ?n=, defaulting to def
func readSize(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("n")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "readSize", "parse n")
	}
	return n, nil
}

// handleModtimer opens the pipeline consumer, returns one batch and closes it.
func (g *Gateway) handleModtimer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consumer, err := g.timer.Open(ctx)
	if err != nil {
		g.fail(w, r, "modtimer", err)
		return
	}
	defer consumer.Close()

	text, err := consumer.ReadText(ctx)
	if err != nil {
		g.fail(w, r, "modtimer", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Session-ID", consumer.ID())
	_, _ = io.WriteString(w, text)
}

func (g *Gateway) handleConfigRead(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, g.tunables.String())
}

// handleConfigWrite applies every valid line. Out-of-range values are
// ignored with a warning and reported in X-Rejected-Lines; only malformed
// lines make the response 400. Accepted lines take effect either way.
func (g *Gateway) handleConfigWrite(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, g.config.MaxRequestSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if int64(len(body)) > g.config.MaxRequestSize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body exceeds maximum size")
		return
	}

	applied, err := g.tunables.ApplyText(string(body))
	w.Header().Set("X-Applied-Lines", strconv.Itoa(applied))
	if err != nil {
		rejected := splitJoined(err)
		g.logger.Warn("configuration lines rejected", "applied", applied, "rejected", len(rejected),
			"error", err, "request_id", requestID(r.Context()))
		if g.metrics != nil {
			g.metrics.RecordError("modconfig", errors.Classify(err).String())
		}
		w.Header().Set("X-Rejected-Lines", strconv.Itoa(len(rejected)))

		if stderrors.Is(err, config.ErrMalformedLine) {
			details := make([]string, len(rejected))
			for i, e := range rejected {
				details[i] = e.Error()
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "invalid configuration",
				"status":  http.StatusBadRequest,
				"applied": applied,
				"details": details,
			})
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, g.tunables.String())
}

// splitJoined returns the members of an errors.Join result, or err alone
func splitJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func (g *Gateway) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"fifo":     g.fifo.Stats(),
		"modtimer": g.timer.Stats(),
		"gateway": map[string]any{
			"requests":   g.requestsTotal.Load(),
			"failed":     g.requestsFailed.Load(),
			"websockets": g.wsOpen.Load(),
		},
	})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if g.monitor == nil {
		writeJSON(w, http.StatusOK, health.NewHealthy("ringpiped", "no monitor configured"))
		return
	}

	status := g.monitor.AggregateHealth(r.Context(), "ringpiped")
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
