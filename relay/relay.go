package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/ringpipe/errors"
	"github.com/c360/ringpipe/pipeline"
	"github.com/c360/ringpipe/pkg/retry"
)

// Publisher sends one message
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// StreamPublisher publishes through a JetStream stream
type StreamPublisher interface {
	EnsureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// Source hands out the pipeline's single consumer session
type Source interface {
	Open(ctx context.Context) (*pipeline.Consumer, error)
}

// Batch is the message published for every drained batch
type Batch struct {
	Session string    `json:"session"`
	Seq     uint64    `json:"seq"`
	Values  []uint32  `json:"values"`
	Time    time.Time `json:"time"`
}

// Stats counts relay activity
type Stats struct {
	Published int64 `json:"published"`
	Values    int64 `json:"values"`
	Failed    int64 `json:"failed"`
	Running   bool  `json:"running"`
}

// Relay holds the pipeline's consumer slot and forwards each batch it reads
// to NATS. While it runs, other clients opening the pipeline get
// ErrTooManyConsumers.
type Relay struct {
	source    Source
	publisher Publisher
	subject   string
	stream    string
	retryCfg  retry.Config
	logger    *slog.Logger

	seq       atomic.Uint64
	published atomic.Int64
	values    atomic.Int64
	failed    atomic.Int64

	mu      sync.Mutex
	running bool
}

// Option configures a Relay
type Option func(*Relay)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRetry sets the per-batch publish retry policy
func WithRetry(cfg retry.Config) Option {
	return func(r *Relay) {
		r.retryCfg = cfg
	}
}

// WithStream publishes through the named JetStream stream. The publisher
// must implement StreamPublisher.
func WithStream(name string) Option {
	return func(r *Relay) {
		r.stream = name
	}
}

// New creates a relay from source to subject
func New(source Source, publisher Publisher, subject string, opts ...Option) (*Relay, error) {
	if source == nil || publisher == nil || subject == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Relay", "New", "validate arguments")
	}

	r := &Relay{
		source:    source,
		publisher: publisher,
		subject:   subject,
		retryCfg:  retry.DefaultConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "relay", "subject", subject)

	if r.stream != "" {
		if _, ok := publisher.(StreamPublisher); !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Relay", "New", "stream requires a JetStream publisher")
		}
	}
	return r, nil
}

// Run opens the pipeline consumer and relays batches until ctx ends. A batch
// that cannot be published after retries is logged and counted, not retried
// again.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Relay", "Run", "start relay")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	publish := r.publisher.Publish
	if r.stream != "" {
		sp := r.publisher.(StreamPublisher)
		cfg := jetstream.StreamConfig{Name: r.stream, Subjects: []string{r.subject}}
		if _, err := sp.EnsureStream(ctx, cfg); err != nil {
			return errors.Wrap(err, "Relay", "Run", "ensure stream")
		}
		publish = sp.PublishToStream
	}

	consumer, err := r.source.Open(ctx)
	if err != nil {
		return errors.Wrap(err, "Relay", "Run", "open pipeline consumer")
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			r.logger.Warn("closing consumer", "error", err)
		}
	}()

	r.logger.Info("relay started", "session_id", consumer.ID(), "stream", r.stream)

	for {
		values, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("relay stopped", "published", r.published.Load())
				return nil
			}
			return errors.Wrap(err, "Relay", "Run", "read batch")
		}

		batch := Batch{
			Session: consumer.ID(),
			Seq:     r.seq.Add(1),
			Values:  values,
			Time:    time.Now().UTC(),
		}
		if err := r.send(ctx, publish, batch); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.failed.Add(1)
			r.logger.Error("batch not published", "seq", batch.Seq, "values", len(values), "error", err)
			continue
		}
		r.published.Add(1)
		r.values.Add(int64(len(values)))
		r.logger.Debug("batch published", "seq", batch.Seq, "values", len(values))
	}
}

func (r *Relay) send(ctx context.Context, publish func(context.Context, string, []byte) error, batch Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return errors.WrapFatal(err, "Relay", "send", "encode batch")
	}
	return retry.Do(ctx, r.retryCfg, func() error {
		return publish(ctx, r.subject, data)
	})
}

// Stats returns relay counters
func (r *Relay) Stats() Stats {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()

	return Stats{
		Published: r.published.Load(),
		Values:    r.values.Load(),
		Failed:    r.failed.Load(),
		Running:   running,
	}
}
