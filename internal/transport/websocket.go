package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 10 * time.Second
)

// WebSocketDialer dials RFC 6455 WebSocket endpoints.
type WebSocketDialer struct {
	// HandshakeTimeout bounds the opening handshake. Zero uses 10s.
	HandshakeTimeout time.Duration
	// Header is sent with the upgrade request.
	Header http.Header
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	c, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("websocket dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return newWSConn(c), nil
}

type wsConn struct {
	c *websocket.Conn

	writeMu sync.Mutex
	closed  atomic.Bool
	listen  sync.Once
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{c: c}
}

func (w *wsConn) Listen(h Handler) {
	w.listen.Do(func() { go w.readLoop(h) })
}

func (w *wsConn) readLoop(h Handler) {
	for {
		_, data, err := w.c.ReadMessage()
		if err != nil {
			w.closed.Store(true)
			_ = w.c.Close()
			if h.OnClose != nil {
				h.OnClose(closeEventFromError(err))
			}
			return
		}
		if h.OnMessage != nil {
			h.OnMessage(data)
		}
	}
}

func closeEventFromError(err error) CloseEvent {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return CloseEvent{Code: ce.Code, Reason: ce.Text}
	}
	return CloseEvent{Code: websocket.CloseAbnormalClosure, Err: err}
}

func (w *wsConn) SendJSON(v any) error {
	if w.closed.Load() {
		return ErrClosed
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.c.WriteJSON(v)
}

func (w *wsConn) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	w.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	werr := w.c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	w.writeMu.Unlock()

	cerr := w.c.Close()
	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		return fmt.Errorf("send close frame: %w", werr)
	}
	return cerr
}

func (w *wsConn) Closed() bool { return w.closed.Load() }
