// Package fifo implements a bounded, blocking byte channel shared by many
// producers and many consumers.
//
// A party joins with Open and a Role. Open blocks until the other side has
// at least one open party, so a producer never writes into a channel nobody
// will read and a consumer never waits on a channel nobody will fill.
//
// Writes are atomic: Write(ctx, p) inserts all of p or nothing, and waits for
// free space while consumers remain. When the last consumer leaves, blocked
// and future writes fail with errors.ErrBrokenConnection. Reads are exact
// while producers remain; after the last producer leaves, a read returns what
// is left and then end-of-stream (nil, nil). Session.Reader maps that to
// io.EOF. A request larger than the ring fails with errors.ErrNoSpace.
//
// Every blocking call takes a context. Cancellation rolls back a pending Open
// and returns an error matching errors.ErrInterrupted. Closing a Session
// wakes that session's blocked calls, which then report errors.ErrSessionClosed.
//
// When the last party of both roles has closed, buffered bytes are discarded.
//
//	ch, _ := fifo.New(fifo.DefaultCapacity)
//
//	go func() {
//		s, _ := ch.Open(ctx, fifo.Producer)
//		defer s.Close()
//		io.Copy(s.Writer(ctx), src)
//	}()
//
//	s, _ := ch.Open(ctx, fifo.Consumer)
//	defer s.Close()
//	io.Copy(dst, s.Reader(ctx))
package fifo
