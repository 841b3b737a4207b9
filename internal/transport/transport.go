// Package transport is the event-style connection contract used by the
// session controller, plus its WebSocket implementation.
//
// A Dialer returns a Conn once the remote side acknowledged the open. The
// caller then registers its Handler with Listen; from that point inbound
// messages arrive on OnMessage and exactly one OnClose ends the stream.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned when sending on a closed connection.
var ErrClosed = errors.New("transport closed")

// CloseEvent describes how a connection ended.
type CloseEvent struct {
	Code   int
	Reason string
	// Err is the underlying read error when the close was not a clean close
	// frame.
	Err error
}

// Handler receives connection events. Callbacks run on the connection's read
// goroutine, one at a time.
type Handler struct {
	OnMessage func(data []byte)
	OnClose   func(ev CloseEvent)
}

// Conn is an open connection.
type Conn interface {
	// Listen starts delivering events to h. Only the first call has effect.
	Listen(h Handler)
	// SendJSON writes v as a single text frame.
	SendJSON(v any) error
	// Close closes the connection normally. It is safe to call repeatedly.
	Close() error
	// Closed reports whether the connection is closed or closing.
	Closed() bool
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function into a Dialer.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) { return f(ctx, url) }
