// Package actortest holds test doubles for the actor loop.
package actortest

import (
	"context"
	"sync"

	"github.com/bhandras/wslink/internal/actor"
)

// FakeRuntime records every effect it is handed.
//
// When EmitFn is set it is called once per effect so tests can answer an
// effect with a follow-up input.
type FakeRuntime struct {
	mu      sync.Mutex
	effects []actor.Effect
	stopped int

	EmitFn func(ctx context.Context, eff actor.Effect, emit func(actor.Input))
}

var _ actor.Runtime = (*FakeRuntime)(nil)

// HandleEffects implements actor.Runtime.
func (r *FakeRuntime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	r.mu.Lock()
	r.effects = append(r.effects, effects...)
	fn := r.EmitFn
	r.mu.Unlock()

	if fn == nil {
		return
	}
	for _, eff := range effects {
		fn(ctx, eff, emit)
	}
}

// Stop implements actor.Runtime.
func (r *FakeRuntime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
}

// Effects returns a copy of the recorded effects.
func (r *FakeRuntime) Effects() []actor.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]actor.Effect, len(r.effects))
	copy(out, r.effects)
	return out
}

// StopCalls reports how many times Stop ran.
func (r *FakeRuntime) StopCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Reset forgets recorded effects.
func (r *FakeRuntime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = nil
}
