package http

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/ringpipe/errors"
	"github.com/c360/ringpipe/fifo"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// wsConn serializes writes to one WebSocket connection and cancels its
// context as soon as the client goes away.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	// frames carries data messages from the client; nil when the endpoint
	// only sends.
	frames chan []byte
}

// upgrade switches the request to a WebSocket and starts its reader and
// keepalive goroutines. The caller must call finish.
func (g *Gateway) upgrade(w http.ResponseWriter, r *http.Request, acceptData bool) (*wsConn, error) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &wsConn{conn: conn, ctx: ctx, cancel: cancel}
	if acceptData {
		c.frames = make(chan []byte)
	}
	g.wsOpen.Add(1)

	go c.readLoop()
	go c.keepalive()
	return c, nil
}

func (c *wsConn) readLoop() {
	defer c.cancel()
	if c.frames != nil {
		defer close(c.frames)
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if c.frames == nil || (mt != websocket.BinaryMessage && mt != websocket.TextMessage) {
			continue
		}
		select {
		case c.frames <- data:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *wsConn) keepalive() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *wsConn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(messageType, data)
}

// finish sends a close frame for err, unless the client is already gone,
// and releases the connection.
func (g *Gateway) finish(c *wsConn, r *http.Request, endpoint string, err error) {
	defer g.wsOpen.Add(-1)
	defer c.cancel()
	defer c.conn.Close()

	// client already gone
	if err != nil && c.ctx.Err() != nil {
		return
	}

	code, reason := websocket.CloseNormalClosure, "end of stream"
	if err != nil {
		status := statusFor(r, err)
		code, reason = wsCloseCode(err), messageFor(status, err)
		g.logger.Debug("websocket closed with error", "endpoint", endpoint,
			"request_id", requestID(r.Context()), "error", err)
		if g.metrics != nil {
			g.metrics.RecordError(endpoint, errors.Classify(err).String())
		}
	}

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
	c.writeMu.Unlock()
}

func wsCloseCode(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrBrokenConnection), stderrors.Is(err, errors.ErrSessionClosed):
		return websocket.CloseGoingAway
	case errors.IsInvalid(err):
		return websocket.ClosePolicyViolation
	case errors.IsTransient(err):
		return websocket.CloseTryAgainLater
	default:
		return websocket.CloseInternalServerErr
	}
}

// handleFifoWS holds one fifo session for the life of the connection.
// Producers send binary frames that are written in order; consumers receive
// a binary frame per read of n bytes and a normal close at end of stream.
func (g *Gateway) handleFifoWS(w http.ResponseWriter, r *http.Request) {
	role, err := fifo.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "role must be producer or consumer")
		return
	}
	n, err := readSize(r, g.fifo.Capacity())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if n > g.fifo.Capacity() {
		writeError(w, http.StatusRequestEntityTooLarge, messageFor(http.StatusRequestEntityTooLarge, nil))
		return
	}

	c, err := g.upgrade(w, r, role == fifo.Producer)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", "endpoint", "fifo", "error", err)
		return
	}

	session, err := g.fifo.Open(c.ctx, role)
	if err != nil {
		g.finish(c, r, "fifo", err)
		return
	}
	defer session.Close()

	g.logger.Debug("fifo websocket session", "role", role.String(), "session_id", session.ID(),
		"request_id", requestID(r.Context()))

	if role == fifo.Producer {
		g.finish(c, r, "fifo", g.pumpIn(c, session))
		return
	}
	g.finish(c, r, "fifo", g.pumpOut(c, session, n))
}

// pumpIn writes every client frame into the channel until the client closes.
func (g *Gateway) pumpIn(c *wsConn, session *fifo.Session) error {
	writer := session.Writer(c.ctx)
	for data := range c.frames {
		if _, err := writer.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// pumpOut sends reads of n bytes to the client until end of stream.
func (g *Gateway) pumpOut(c *wsConn, session *fifo.Session, n int) error {
	for {
		data, err := session.Read(c.ctx, n)
		if err != nil {
			return err
		}
		if data == nil {
			return nil
		}
		if err := c.write(websocket.BinaryMessage, data); err != nil {
			c.cancel()
			return err
		}
	}
}

// handleModtimerWS holds the pipeline consumer for the life of the
// connection and streams every batch as a text frame.
func (g *Gateway) handleModtimerWS(w http.ResponseWriter, r *http.Request) {
	consumer, err := g.timer.Open(r.Context())
	if err != nil {
		g.fail(w, r, "modtimer", err)
		return
	}
	defer consumer.Close()

	c, err := g.upgrade(w, r, false)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", "endpoint", "modtimer", "error", err)
		return
	}

	for {
		text, err := consumer.ReadText(c.ctx)
		if err != nil {
			g.finish(c, r, "modtimer", err)
			return
		}
		if err := c.write(websocket.TextMessage, []byte(text)); err != nil {
			c.cancel()
			g.finish(c, r, "modtimer", err)
			return
		}
	}
}
