package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/ringpipe/errors"
)

// Consumer is the single open session on a Pipeline. The producer runs only
// while a consumer is open.
type Consumer struct {
	id       string
	p        *Pipeline
	producer *producer
	opened   time.Time

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// Open claims the consumer slot and starts the periodic producer. A second
// concurrent Open fails with ErrTooManyConsumers.
func (p *Pipeline) Open(ctx context.Context) (*Consumer, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Interrupted(ctx, "Pipeline", "Open", "open consumer")
	}

	p.slotMu.Lock()
	defer p.slotMu.Unlock()

	if !p.started {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "Pipeline", "Open", "open consumer")
	}
	if p.runCtx.Err() != nil {
		return nil, errors.WrapInvalid(errors.ErrAlreadyStopped, "Pipeline", "Open", "open consumer")
	}
	if p.active != nil {
		return nil, errors.WrapInvalid(errors.ErrTooManyConsumers, "Pipeline", "Open", "claim consumer slot")
	}

	sctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		id:     uuid.NewString(),
		p:      p,
		opened: time.Now(),
		ctx:    sctx,
		cancel: cancel,
	}
	p.active = c
	c.producer = startProducer(p)

	if p.metrics != nil {
		p.metrics.RecordSessionOpened("modtimer", "consumer")
	}
	p.logger.Info("consumer opened", "session_id", c.id)
	return c, nil
}

// ID returns the session identifier
func (c *Consumer) ID() string {
	return c.id
}

// Read blocks until at least one value has been drained into the list and
// returns every queued value in order.
func (c *Consumer) Read(ctx context.Context) ([]uint32, error) {
	if c.ctx.Err() != nil {
		return nil, errors.WrapInvalid(errors.ErrSessionClosed, "Consumer", "Read", "read values")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	start := time.Now()
	values, err := c.p.list.TakeAll(ctx)
	if c.p.metrics != nil {
		c.p.metrics.RecordWait("modtimer", "read", time.Since(start))
	}
	if err != nil {
		if c.ctx.Err() != nil {
			return nil, errors.WrapInvalid(errors.ErrSessionClosed, "Consumer", "Read", "read values")
		}
		return nil, errors.Interrupted(ctx, "Consumer", "Read", "wait for values")
	}

	if c.p.metrics != nil {
		c.p.metrics.RecordBytes("modtimer", "out", len(values)*ValueSize)
	}
	return values, nil
}

// ReadText is Read rendered as newline separated decimals
func (c *Consumer) ReadText(ctx context.Context) (string, error) {
	values, err := c.Read(ctx)
	if err != nil {
		return "", err
	}
	return FormatValues(values), nil
}

// Close stops the producer, waits for scheduled drains, discards anything
// staged or listed and frees the consumer slot. Calling Close more than once
// is safe; later calls return nil.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.producer.shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if ferr := c.p.pool.Flush(ctx); ferr != nil && !stderrors.Is(ferr, context.Canceled) {
			err = errors.WrapTransient(ferr, "Consumer", "Close", "flush drains")
		}

		c.p.reset()

		c.p.slotMu.Lock()
		if c.p.active == c {
			c.p.active = nil
		}
		c.p.slotMu.Unlock()

		if c.p.metrics != nil {
			c.p.metrics.RecordSessionClosed("modtimer", "consumer")
		}
		c.p.logger.Info("consumer closed", "session_id", c.id, "open_for", time.Since(c.opened))
	})
	return err
}
