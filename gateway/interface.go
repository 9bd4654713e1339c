package gateway

import (
	"context"
	"net/http"

	"github.com/c360/ringpipe/fifo"
	"github.com/c360/ringpipe/pipeline"
)

// HTTPHandler is implemented by anything that serves routes on a shared mux.
type HTTPHandler interface {
	RegisterHTTPHandlers(prefix string, mux *http.ServeMux)
}

// FifoEndpoint is the byte channel behind /fifo
type FifoEndpoint interface {
	Open(ctx context.Context, role fifo.Role) (*fifo.Session, error)
	Capacity() int
	Stats() fifo.Stats
}

// TimerEndpoint is the drain pipeline behind /modtimer
type TimerEndpoint interface {
	Open(ctx context.Context) (*pipeline.Consumer, error)
	Stats() pipeline.Stats
}

// ConfigEndpoint is the runtime tunables behind /modconfig
type ConfigEndpoint interface {
	String() string
	ApplyText(text string) (int, error)
}
