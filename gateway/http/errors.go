package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/c360/ringpipe/errors"
)

// StatusClientClosedRequest is reported when the client went away while a
// request was blocked.
const StatusClientClosedRequest = 499

// statusFor maps endpoint errors to HTTP status codes
func statusFor(r *http.Request, err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, errors.ErrNoSpace):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, errors.ErrTooManyConsumers):
		return http.StatusConflict
	case stderrors.Is(err, errors.ErrBrokenConnection), stderrors.Is(err, errors.ErrSessionClosed):
		return http.StatusGone
	case stderrors.Is(err, errors.ErrResourceExhausted):
		return http.StatusInsufficientStorage
	case stderrors.Is(err, errors.ErrInterrupted), stderrors.Is(err, context.Canceled),
		stderrors.Is(err, context.DeadlineExceeded):
		if r.Context().Err() != nil {
			return StatusClientClosedRequest
		}
		return http.StatusServiceUnavailable
	case stderrors.Is(err, errors.ErrInvalidConfig), errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsFatal(err):
		return http.StatusInternalServerError
	case errors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns a message safe to show clients
func messageFor(status int, err error) string {
	switch status {
	case http.StatusRequestEntityTooLarge:
		return "request exceeds buffer capacity"
	case http.StatusConflict:
		return "too many consumers"
	case http.StatusGone:
		if stderrors.Is(err, errors.ErrSessionClosed) {
			return "session closed"
		}
		return "peer disconnected"
	case http.StatusInsufficientStorage:
		return "resource exhausted"
	case StatusClientClosedRequest, http.StatusServiceUnavailable:
		return "request interrupted"
	case http.StatusBadRequest:
		return "invalid request"
	default:
		return "internal server error"
	}
}

func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	status := statusFor(r, err)
	g.logger.Debug("request failed", "endpoint", endpoint, "status", status,
		"request_id", requestID(r.Context()), "error", err)
	if g.metrics != nil {
		g.metrics.RecordError(endpoint, errors.Classify(err).String())
	}
	writeError(w, status, messageFor(status, err))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error":  message,
		"status": status,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
