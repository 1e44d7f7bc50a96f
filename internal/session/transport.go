// internal/session/transport.go

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	apperr "citspace/internal/error"

	"github.com/gorilla/websocket"
)

// Conn is one open duplex message stream.
type Conn interface {
	// ReadMessage blocks for the next inbound frame. When the peer closes
	// the stream it returns a *CloseError.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	// Close sends a close frame with code and reason, then releases the
	// stream. It is safe to call while ReadMessage is blocked.
	Close(code int, reason string) error
}

// Dialer opens streams to the relay.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// CloseError reports a close frame received from the peer.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("stream closed (code %d: %s)", e.Code, e.Reason)
}

// Events posted by stream goroutines to the owner's event loop. Each carries
// the generation of the stream that produced it so late events from a torn
// down stream can be recognized and dropped.
type Event interface {
	stream() uint64
}

// Opened reports a stream ready for writing.
type Opened struct {
	Stream uint64
	Conn   Conn
}

// Received carries one inbound frame.
type Received struct {
	Stream uint64
	Data   []byte
}

// Failed reports that a stream could not be established.
type Failed struct {
	Stream uint64
	Err    error
}

// Closed reports the end of a stream. Clean is false when no close frame
// was received.
type Closed struct {
	Stream uint64
	Code   int
	Reason string
	Clean  bool
}

func (e Opened) stream() uint64   { return e.Stream }
func (e Received) stream() uint64 { return e.Stream }
func (e Failed) stream() uint64   { return e.Stream }
func (e Closed) stream() uint64   { return e.Stream }

// run dials and then reads until the stream ends, posting events in order.
func run(ctx context.Context, d Dialer, url string, timeout time.Duration, gen uint64, post func(Event)) {
	dctx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, timeout)
	}
	conn, err := d.Dial(dctx, url)
	cancel()
	if err != nil {
		post(Failed{Stream: gen, Err: err})
		return
	}
	post(Opened{Stream: gen, Conn: conn})

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			var ce *CloseError
			if errors.As(err, &ce) {
				post(Closed{Stream: gen, Code: ce.Code, Reason: ce.Reason, Clean: true})
			} else {
				post(Closed{Stream: gen, Code: CloseAbnormal, Reason: err.Error()})
			}
			return
		}
		post(Received{Stream: gen, Data: data})
	}
}

// WebSocketDialer dials the relay over WebSocket.
type WebSocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	wd := d.Dialer
	if wd == nil {
		wd = websocket.DefaultDialer
	}
	c, resp, err := wd.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %s)", err, resp.Status)
		}
		return nil, apperr.New(apperr.ConnectionError, "failed to open relay stream", err)
	}
	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	kind := websocket.TextMessage
	if !utf8.Valid(data) {
		kind = websocket.BinaryMessage
	}
	return c.conn.WriteMessage(kind, data)
}

func (c *wsConn) Close(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}
