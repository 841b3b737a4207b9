package session

import (
	"github.com/bhandras/wslink/internal/actor"
	"github.com/bhandras/wslink/internal/closure"
)

// Reduce is the connection lifecycle transition function.
//
// Transitions:
//
//	Idle    -> Opening  mount, update or reconnect, gate passes, handle empty
//	Opening -> Open     evOpened for the handle's generation
//	Opening -> Idle     evClosed for the handle's generation (dial failure)
//	Open    -> Idle     evClosed for the handle's generation
//	any     -> Unmounted on unmount
//
// Events from other generations never touch the handle.
func Reduce(state State, input actor.Input) (State, []actor.Effect) {
	if state.Phase == PhaseUnmounted {
		return reduceUnmounted(state, input)
	}

	switch in := input.(type) {
	case cmdMount:
		state.Mounted = true
		state.Desc = in.Desc
		return tryOpen(state, TriggerMount, nil)
	case cmdUpdate:
		state.Desc = in.Desc
		if !state.Mounted {
			return state, nil
		}
		return tryOpen(state, TriggerUpdate, nil)
	case cmdReconnect:
		return reduceReconnect(state)
	case cmdUnmount:
		return reduceUnmount(state, in)
	case evOpened:
		return reduceOpened(state, in)
	case evFrame:
		return reduceFrame(state, in)
	case evClosed:
		return reduceClosed(state, in)
	default:
		return state, nil
	}
}

// tryOpen performs Idle -> Opening when the handle is empty and the gate
// passes. effects are prepended to whatever tryOpen adds.
func tryOpen(state State, trigger string, effects []actor.Effect) (State, []actor.Effect) {
	if !state.Handle.Empty() {
		return state, append(effects, effBusy{Trigger: trigger})
	}
	ok, reason := readiness(state.Desc)
	if !ok {
		state.Phase = PhaseIdle
		return state, append(effects, effDeferred{Trigger: trigger, Reason: reason})
	}

	state.LastGen++
	state.Handle = Handle{Gen: state.LastGen}
	state.Phase = PhaseOpening
	return state, append(effects, effOpen{
		Gen:        state.LastGen,
		EndpointID: state.Desc.EndpointID.Value(),
		Trigger:    trigger,
	})
}

func reduceReconnect(state State) (State, []actor.Effect) {
	if !state.Mounted {
		return state, nil
	}
	var effects []actor.Effect
	if !state.Handle.Empty() {
		effects = append(effects, effClose{Gen: state.Handle.Gen, Reason: TriggerReconnect})
		state.Handle = Handle{}
		state.Phase = PhaseIdle
	}
	return tryOpen(state, TriggerReconnect, effects)
}

func reduceUnmount(state State, cmd cmdUnmount) (State, []actor.Effect) {
	var effects []actor.Effect
	if !state.Handle.Empty() {
		effects = append(effects, effClose{Gen: state.Handle.Gen, Reason: "unmount"})
	}
	state.Handle = Handle{}
	state.Mounted = false
	state.Phase = PhaseUnmounted
	if cmd.Reply != nil {
		effects = append(effects, effReply{Reply: cmd.Reply})
	}
	return state, effects
}

func reduceOpened(state State, ev evOpened) (State, []actor.Effect) {
	if ev.Gen != state.Handle.Gen || state.Phase != PhaseOpening {
		// A superseded attempt finished opening; nobody owns it.
		return state, []actor.Effect{effClose{Gen: ev.Gen, Reason: "stale"}}
	}

	state.Handle.Open = true
	state.Phase = PhaseOpen

	hs := effSendHandshake{Gen: ev.Gen}
	if state.Desc.ObjectID != nil {
		hs.ObjectID = state.Desc.ObjectID.Value()
	}
	if state.Desc.CloseParam != nil {
		v := state.Desc.CloseParam.Value()
		hs.CloseParam = &v
	}
	return state, []actor.Effect{hs}
}

func reduceFrame(state State, ev evFrame) (State, []actor.Effect) {
	if ev.Gen != state.Handle.Gen || !state.Handle.Open {
		return state, nil
	}
	return state, []actor.Effect{effDispatch{
		Gen:      ev.Gen,
		Data:     ev.Data,
		Output:   state.Desc.Output,
		Bindings: state.Desc.Bindings,
	}}
}

func reduceClosed(state State, ev evClosed) (State, []actor.Effect) {
	if state.Handle.Empty() || ev.Gen != state.Handle.Gen {
		return state, nil
	}
	// Open -> Closed -> Idle in one step: the handle is cleared before any
	// closure action runs.
	state.Handle = Handle{}
	state.Phase = PhaseIdle
	return state, []actor.Effect{effApplyClosure{
		Gen:        ev.Gen,
		Event:      ev.Event,
		Err:        ev.Err,
		OnTimeout:  state.Desc.OnTimeout,
		OnNavigate: state.Desc.OnNavigate,
	}}
}

func reduceUnmounted(state State, input actor.Input) (State, []actor.Effect) {
	switch in := input.(type) {
	case evOpened:
		return state, []actor.Effect{effClose{Gen: in.Gen, Reason: "unmounted"}}
	case cmdUnmount:
		if in.Reply != nil {
			return state, []actor.Effect{effReply{Reply: in.Reply}}
		}
	}
	return state, nil
}

// dialFailed is the closure reported when the transport never opened.
func dialFailed(gen int64, err error) evClosed {
	return evClosed{Gen: gen, Event: closure.Event{Code: closure.CodeAbnormal, Reason: "dial failed"}, Err: err}
}
