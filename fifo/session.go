package fifo

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/ringpipe/errors"
)

// Session is one open party on a Channel. Closing the session wakes any of
// its own calls still blocked in the channel.
type Session struct {
	id   string
	role Role
	ch   *Channel

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func newSession(ch *Channel, role Role) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:     uuid.NewString(),
		role:   role,
		ch:     ch,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Role returns the role the session was opened with.
func (s *Session) Role() Role {
	return s.role
}

// Write writes p as one atomic insert. Only producer sessions may write.
func (s *Session) Write(ctx context.Context, p []byte) (int, error) {
	if s.role != Producer {
		return 0, errors.WrapInvalid(fmt.Errorf("write on %s session", s.role), "Session", "Write", "check role")
	}
	ctx, release, err := s.bind(ctx, "Write")
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := s.ch.Write(ctx, p)
	return n, s.translate(err, "Write")
}

// Read reads up to n bytes. A nil slice with a nil error is end-of-stream.
// Only consumer sessions may read.
func (s *Session) Read(ctx context.Context, n int) ([]byte, error) {
	if s.role != Consumer {
		return nil, errors.WrapInvalid(fmt.Errorf("read on %s session", s.role), "Session", "Read", "check role")
	}
	ctx, release, err := s.bind(ctx, "Read")
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.ch.Read(ctx, n)
	return p, s.translate(err, "Read")
}

// Close releases the session's place on the channel. It is safe to call more
// than once; later calls return the result of the first.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.ch.Close(s.role)
	})
	return s.closeErr
}

// Reader adapts a consumer session to io.Reader. Each call reads
// min(len(p), capacity) bytes and reports io.EOF at end-of-stream.
func (s *Session) Reader(ctx context.Context) io.Reader {
	return &sessionReader{s: s, ctx: ctx}
}

// Writer adapts a producer session to io.Writer, splitting p into
// capacity-sized inserts.
func (s *Session) Writer(ctx context.Context) io.Writer {
	return &sessionWriter{s: s, ctx: ctx}
}

// bind derives a context that also ends when the session is closed.
func (s *Session) bind(ctx context.Context, method string) (context.Context, func(), error) {
	if s.ctx.Err() != nil {
		return nil, nil, errors.WrapInvalid(errors.ErrSessionClosed, "Session", method, "check session")
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

func (s *Session) translate(err error, method string) error {
	if err != nil && s.ctx.Err() != nil && stderrors.Is(err, errors.ErrInterrupted) {
		return errors.WrapInvalid(errors.ErrSessionClosed, "Session", method, "wait")
	}
	return err
}

type sessionReader struct {
	s   *Session
	ctx context.Context
}

func (r *sessionReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := min(len(p), r.s.ch.Capacity())
	data, err := r.s.Read(r.ctx, n)
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

type sessionWriter struct {
	s   *Session
	ctx context.Context
}

func (w *sessionWriter) Write(p []byte) (int, error) {
	written := 0
	limit := w.s.ch.Capacity()
	for written < len(p) {
		end := min(written+limit, len(p))
		n, err := w.s.Write(w.ctx, p[written:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
