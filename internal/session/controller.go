// Package session owns the single live connection of a widget instance.
//
// The Controller runs the lifecycle reducer on its own loop goroutine, so
// mount, dependency updates, reconnect requests, unmount and every transport
// callback are applied one at a time in arrival order. Only that loop touches
// the session handle.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bhandras/wslink/internal/actor"
	"github.com/bhandras/wslink/internal/hostctx"
	"github.com/bhandras/wslink/internal/logger"
	"github.com/bhandras/wslink/internal/transport"
)

// ErrUnmounted is returned by controller methods after Unmount.
var ErrUnmounted = errors.New("session unmounted")

// Config wires a Controller to its collaborators.
type Config struct {
	Dialer transport.Dialer
	Host   hostctx.Context
	Log    logger.Logger

	// OnTransition observes every state change, on the loop goroutine.
	OnTransition func(prev, next State)
	// OnError receives errors from inbound frame handling.
	OnError func(err error)
}

// Controller is the connection lifecycle controller.
type Controller struct {
	loop    *actor.Actor[State]
	runtime *Runtime
	log     logger.Logger

	mu        sync.Mutex
	desc      Descriptor
	mounted   bool
	unmounted bool
}

// NewController builds a controller. Nothing happens until Mount.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("session: dialer is required")
	}
	if cfg.Host == nil {
		return nil, fmt.Errorf("session: host context is required")
	}

	rt := NewRuntime(cfg.Dialer, cfg.Host, cfg.Log, cfg.OnError)
	log := cfg.Log
	hooks := actor.Hooks[State]{
		OnTransition: func(prev, next State, _ actor.Input) {
			if prev.Phase != next.Phase || prev.Handle != next.Handle {
				log.Debugf("session %s -> %s (gen=%d)", prev.Phase, next.Phase, next.Handle.Gen)
			}
			if cfg.OnTransition != nil {
				cfg.OnTransition(prev, next)
			}
		},
	}

	return &Controller{
		loop:    actor.New(State{Phase: PhaseIdle}, Reduce, rt, actor.WithHooks(hooks), actor.WithMailboxSize[State](256)),
		runtime: rt,
		log:     log,
	}, nil
}

// Mount starts the controller and attempts the first open.
func (c *Controller) Mount(d Descriptor) error {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return ErrUnmounted
	}
	c.desc = d
	c.mounted = true
	c.mu.Unlock()

	c.loop.Start()
	return c.send(cmdMount{Desc: d})
}

// Update replaces the descriptor after a dependency change and retries the
// open if the session is idle. It never closes a live session.
func (c *Controller) Update(d Descriptor) error {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return ErrUnmounted
	}
	c.desc = d
	c.mu.Unlock()
	return c.send(cmdUpdate{Desc: d})
}

// Reconnect closes the current session, if any, and opens a new one when the
// readiness gate passes.
func (c *Controller) Reconnect() error {
	return c.send(cmdReconnect{})
}

// Unmount closes any live session and stops the controller. It waits for the
// close to be issued or ctx to end.
func (c *Controller) Unmount(ctx context.Context) error {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return nil
	}
	c.unmounted = true
	mounted := c.mounted
	c.mu.Unlock()

	defer c.loop.Stop()
	if !mounted {
		return nil
	}

	reply := make(chan struct{})
	if err := c.loop.Send(ctx, cmdUnmount{Reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Descriptor returns the descriptor most recently passed to Mount or Update.
func (c *Controller) Descriptor() Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desc
}

// Ready evaluates the readiness gate against the current descriptor.
func (c *Controller) Ready() bool {
	return Ready(c.Descriptor())
}

// State returns a snapshot of the loop state.
func (c *Controller) State() State {
	return c.loop.State()
}

func (c *Controller) send(in actor.Input) error {
	c.mu.Lock()
	unmounted, mounted := c.unmounted, c.mounted
	c.mu.Unlock()
	if unmounted {
		return ErrUnmounted
	}
	if !mounted {
		// Not started yet; the descriptor is kept for Mount.
		return nil
	}
	if err := c.loop.Send(context.Background(), in); err != nil {
		if errors.Is(err, actor.ErrStopped) {
			return ErrUnmounted
		}
		return err
	}
	return nil
}
