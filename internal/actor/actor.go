// Package actor runs a reducer-driven event loop on a single goroutine.
//
// The loop owns its state. Callers deliver inputs to a mailbox; a pure reducer
// turns (state, input) into the next state plus a list of effects; a Runtime
// carries out the effects and reports what happened by emitting new inputs.
// Every transition therefore happens on one goroutine, in mailbox order.
package actor

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned when an input is delivered to a stopped actor.
var ErrStopped = errors.New("actor stopped")

// Input is anything the loop consumes: commands from callers or events from
// the runtime.
type Input interface {
	isActorInput()
}

// Effect is a side effect requested by a reducer. Effects are plain data; the
// Runtime decides how to perform them.
type Effect interface {
	isActorEffect()
}

// ReducerFunc computes the next state. It must not perform I/O or start
// goroutines.
type ReducerFunc[S any] func(state S, input Input) (next S, effects []Effect)

// Runtime performs effects and feeds results back through emit.
type Runtime interface {
	// HandleEffects is called on the loop goroutine and must not block on
	// network I/O. Anything slow runs in its own goroutine and reports back
	// through emit. emit blocks when the mailbox is full, so synchronous
	// emits from HandleEffects must stay few.
	HandleEffects(ctx context.Context, effects []Effect, emit func(Input))

	// Stop releases runtime resources. It may be called more than once.
	Stop()
}

// Hooks observe the loop. All hooks run on the loop goroutine.
type Hooks[S any] struct {
	OnInput      func(input Input)
	OnTransition func(prev S, next S, input Input)
	OnEffects    func(effects []Effect)
	// OnPanic receives a recovered panic. A nil OnPanic re-panics.
	OnPanic func(recovered any)
}

// Option configures an Actor.
type Option[S any] func(*Actor[S])

// WithHooks installs observability hooks.
func WithHooks[S any](hooks Hooks[S]) Option[S] {
	return func(a *Actor[S]) { a.hooks = hooks }
}

// WithMailboxSize sets the mailbox capacity. Non-positive sizes are ignored.
func WithMailboxSize[S any](n int) Option[S] {
	return func(a *Actor[S]) {
		if n > 0 {
			a.inbox = make(chan Input, n)
		}
	}
}

// Actor is a single-goroutine state owner.
type Actor[S any] struct {
	reduce  ReducerFunc[S]
	runtime Runtime
	hooks   Hooks[S]

	mu    sync.Mutex
	state S

	inbox  chan Input
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates an actor. Call Start to run it.
func New[S any](initial S, reducer ReducerFunc[S], runtime Runtime, opts ...Option[S]) *Actor[S] {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor[S]{
		reduce:  reducer,
		runtime: runtime,
		state:   initial,
		inbox:   make(chan Input, 64),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the loop. Repeated calls are no-ops.
func (a *Actor[S]) Start() {
	a.startOnce.Do(func() { go a.loop() })
}

// Stop cancels the loop and stops the runtime. Inputs still queued are
// dropped.
func (a *Actor[S]) Stop() {
	a.stopOnce.Do(func() {
		a.cancel()
		if a.runtime != nil {
			a.runtime.Stop()
		}
	})
}

// Done is closed once the loop goroutine has returned.
func (a *Actor[S]) Done() <-chan struct{} { return a.done }

// Enqueue delivers input without blocking. It reports false when the actor is
// stopped or the mailbox is full.
func (a *Actor[S]) Enqueue(input Input) bool {
	if input == nil || a.ctx.Err() != nil {
		return false
	}
	select {
	case a.inbox <- input:
		return true
	default:
		return false
	}
}

// Send delivers input, waiting for mailbox space until ctx is done or the
// actor stops.
func (a *Actor[S]) Send(ctx context.Context, input Input) error {
	if input == nil {
		return nil
	}
	if a.ctx.Err() != nil {
		return ErrStopped
	}
	select {
	case a.inbox <- input:
		return nil
	case <-a.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a snapshot of the loop-owned state.
func (a *Actor[S]) State() S {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Actor[S]) loop() {
	defer close(a.done)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if a.hooks.OnPanic == nil {
			panic(r)
		}
		a.hooks.OnPanic(r)
	}()

	// emit blocks while the mailbox is full so runtime goroutines get
	// backpressure instead of silently losing events.
	emit := func(in Input) { _ = a.Send(a.ctx, in) }

	for {
		select {
		case <-a.ctx.Done():
			return
		case in := <-a.inbox:
			a.step(in, emit)
		}
	}
}

func (a *Actor[S]) step(in Input, emit func(Input)) {
	if in == nil {
		return
	}
	if a.hooks.OnInput != nil {
		a.hooks.OnInput(in)
	}

	a.mu.Lock()
	prev := a.state
	a.mu.Unlock()

	next, effects := a.reduce(prev, in)

	a.mu.Lock()
	a.state = next
	a.mu.Unlock()

	if a.hooks.OnTransition != nil {
		a.hooks.OnTransition(prev, next, in)
	}
	if len(effects) == 0 {
		return
	}
	if a.hooks.OnEffects != nil {
		a.hooks.OnEffects(effects)
	}
	if a.runtime != nil {
		a.runtime.HandleEffects(a.ctx, effects, emit)
	}
}

// Step runs reducer once without a loop. Reducer tests use it.
func Step[S any](state S, input Input, reducer ReducerFunc[S]) (S, []Effect) {
	return reducer(state, input)
}

// InputBase can be embedded to satisfy Input.
type InputBase struct{}

func (InputBase) isActorInput() {}

// EffectBase can be embedded to satisfy Effect.
type EffectBase struct{}

func (EffectBase) isActorEffect() {}
