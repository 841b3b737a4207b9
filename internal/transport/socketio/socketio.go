// Package socketio carries session frames over a Socket.IO connection.
//
// The endpoint URL path selects the Socket.IO namespace, so every widget
// instance talks to its own namespace. Frames travel as "message" events.
// Socket.IO has no close codes; the endpoint may emit a "close" event with
// {code, reason} right before disconnecting, otherwise the disconnect reason
// is mapped onto the nearest WebSocket code.
package socketio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/bhandras/wslink/internal/transport"
)

const (
	defaultPath         = "/socket.io/"
	defaultMessageEvent = "message"
	closeEvent          = "close"
	connectPoll         = 50 * time.Millisecond
	eventBuffer         = 256
)

const (
	codeNormal   = 1000
	codeTimeout  = 1001
	codeAbnormal = 1006
)

// Dialer opens Socket.IO connections.
type Dialer struct {
	// Path is the engine.io path. Empty uses "/socket.io/".
	Path string
	// MessageEvent names the event frames travel on. Empty uses "message".
	MessageEvent string
	// Auth is sent in the Socket.IO handshake.
	Auth map[string]any
}

var _ transport.Dialer = (*Dialer)(nil)

// Dial implements transport.Dialer. ws/wss URLs are rewritten to http/https.
func (d *Dialer) Dial(ctx context.Context, rawURL string) (transport.Conn, error) {
	target, err := httpURL(rawURL)
	if err != nil {
		return nil, err
	}

	opts := socket.DefaultOptions()
	opts.SetPath(firstNonEmpty(d.Path, defaultPath))
	opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	if d.Auth != nil {
		opts.SetAuth(d.Auth)
	}

	sock, err := socket.Connect(target, opts)
	if err != nil {
		return nil, fmt.Errorf("socket.io connect %s: %w", target, err)
	}

	c := newConn(&ioSocket{s: sock}, firstNonEmpty(d.MessageEvent, defaultMessageEvent))
	if err := c.waitConnected(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// socketAPI is the subset of the Socket.IO client the conn needs.
type socketAPI interface {
	on(event string, fn func(args ...any))
	emit(event string, payload any) error
	disconnect()
	connected() bool
}

type ioSocket struct {
	s *socket.Socket
}

func (i *ioSocket) on(event string, fn func(args ...any)) {
	i.s.On(types.EventName(event), fn)
}

func (i *ioSocket) emit(event string, payload any) error {
	return i.s.Emit(event, payload)
}

func (i *ioSocket) disconnect() { i.s.Disconnect() }

func (i *ioSocket) connected() bool { return i.s.Connected() }

type event struct {
	data  []byte
	close *transport.CloseEvent
}

type conn struct {
	sock         socketAPI
	messageEvent string

	events    chan event
	up        chan struct{}
	upOnce    sync.Once
	connErr   chan string
	closed    atomic.Bool
	closeOnce sync.Once
	listen    sync.Once

	mu          sync.Mutex
	remoteClose *transport.CloseEvent
}

func newConn(sock socketAPI, messageEvent string) *conn {
	c := &conn{
		sock:         sock,
		messageEvent: messageEvent,
		events:       make(chan event, eventBuffer),
		up:           make(chan struct{}),
		connErr:      make(chan string, 1),
	}

	sock.on("connect", func(...any) {
		c.upOnce.Do(func() { close(c.up) })
	})
	sock.on("connect_error", func(args ...any) {
		select {
		case c.connErr <- fmt.Sprint(args...):
		default:
		}
	})
	sock.on(messageEvent, func(args ...any) {
		if len(args) == 0 || c.closed.Load() {
			return
		}
		data, err := frameBytes(args[0])
		if err != nil {
			return
		}
		c.events <- event{data: data}
	})
	sock.on(closeEvent, func(args ...any) {
		if len(args) == 0 {
			return
		}
		if ev, ok := parseCloseEvent(args[0]); ok {
			c.mu.Lock()
			c.remoteClose = &ev
			c.mu.Unlock()
		}
	})
	sock.on("disconnect", func(args ...any) {
		reason := ""
		if len(args) > 0 {
			reason, _ = args[0].(string)
		}
		c.finish(c.closeFor(reason))
	})
	return c
}

func (c *conn) waitConnected(ctx context.Context) error {
	ticker := time.NewTicker(connectPoll)
	defer ticker.Stop()
	for {
		if c.sock.connected() {
			return nil
		}
		select {
		case <-c.up:
			return nil
		case msg := <-c.connErr:
			return fmt.Errorf("socket.io connect error: %s", msg)
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *conn) closeFor(reason string) transport.CloseEvent {
	c.mu.Lock()
	remote := c.remoteClose
	c.mu.Unlock()
	if remote != nil {
		return *remote
	}
	return closeFromReason(reason)
}

// closeFromReason maps Socket.IO disconnect reasons onto WebSocket codes.
func closeFromReason(reason string) transport.CloseEvent {
	switch reason {
	case "ping timeout":
		return transport.CloseEvent{Code: codeTimeout, Reason: reason}
	case "io client disconnect", "io server disconnect":
		return transport.CloseEvent{Code: codeNormal, Reason: reason}
	default:
		return transport.CloseEvent{Code: codeAbnormal, Reason: reason}
	}
}

func (c *conn) finish(ev transport.CloseEvent) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.events <- event{close: &ev}
	})
}

func (c *conn) Listen(h transport.Handler) {
	c.listen.Do(func() {
		go func() {
			for ev := range c.events {
				if ev.close != nil {
					if h.OnClose != nil {
						h.OnClose(*ev.close)
					}
					return
				}
				if h.OnMessage != nil {
					h.OnMessage(ev.data)
				}
			}
		}()
	})
}

func (c *conn) SendJSON(v any) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}
	payload, err := toPayload(v)
	if err != nil {
		return err
	}
	return c.sock.emit(c.messageEvent, payload)
}

func (c *conn) Close() error {
	if c.closed.Load() {
		return nil
	}
	c.sock.disconnect()
	c.finish(transport.CloseEvent{Code: codeNormal, Reason: "io client disconnect"})
	return nil
}

func (c *conn) Closed() bool { return c.closed.Load() }

// toPayload turns v into the map form the Socket.IO encoder expects.
func toPayload(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj, nil
	}
	return string(raw), nil
}

func frameBytes(arg any) ([]byte, error) {
	switch v := arg.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func parseCloseEvent(arg any) (transport.CloseEvent, bool) {
	m, ok := arg.(map[string]any)
	if !ok {
		return transport.CloseEvent{}, false
	}
	code, ok := m["code"].(float64)
	if !ok {
		return transport.CloseEvent{}, false
	}
	reason, _ := m["reason"].(string)
	return transport.CloseEvent{Code: int(code), Reason: reason}, true
}

func httpURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse endpoint url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
