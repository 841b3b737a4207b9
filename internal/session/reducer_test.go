package session

import (
	"testing"

	"github.com/bhandras/wslink/internal/actor"
	"github.com/bhandras/wslink/internal/closure"
	"github.com/bhandras/wslink/internal/dispatch"
	"github.com/bhandras/wslink/internal/reactive"
	"github.com/stretchr/testify/require"
)

type stubAction struct{ can bool }

func (a stubAction) CanExecute() bool { return a.can }
func (stubAction) Execute()           {}

func readyDescriptor() Descriptor {
	return Descriptor{
		EndpointID: reactive.Of("ep-1"),
		ObjectID:   reactive.Of("obj-1"),
	}
}

func step(t *testing.T, s State, in actor.Input) (State, []actor.Effect) {
	t.Helper()
	return actor.Step(s, in, Reduce)
}

func TestReadyGateCombinations(t *testing.T) {
	t.Parallel()

	statuses := []reactive.Status{reactive.Available, reactive.Loading, reactive.Unavailable}
	value := func(s reactive.Status) reactive.Value[string] {
		if s == reactive.Available {
			return reactive.Of("x")
		}
		return reactive.Pending[string](s)
	}

	for _, obj := range statuses {
		for _, ep := range statuses {
			for _, out := range statuses {
				for _, param := range statuses {
					for _, can := range []bool{true, false} {
						outAttr := reactive.NewAttribute("", false)
						outAttr.SetStatus(out)
						d := Descriptor{
							ObjectID:   value(obj),
							EndpointID: value(ep),
							Output:     outAttr,
							CloseParam: value(param),
							Bindings: []dispatch.Binding{
								{Trigger: "none"},
								{Trigger: "a", Action: stubAction{can: can}},
							},
						}
						want := obj == reactive.Available && ep == reactive.Available &&
							out == reactive.Available && param == reactive.Available && can
						require.Equal(t, want, Ready(d), "obj=%s ep=%s out=%s param=%s can=%v", obj, ep, out, param, can)
					}
				}
			}
		}
	}
}

func TestReadyOptionalValues(t *testing.T) {
	t.Parallel()

	require.True(t, Ready(readyDescriptor()))
	require.False(t, Ready(Descriptor{EndpointID: reactive.Of("ep")}))
	require.False(t, Ready(Descriptor{ObjectID: reactive.Of("obj")}))

	// Closure actions are not part of the gate.
	d := readyDescriptor()
	d.OnTimeout = stubAction{can: false}
	d.OnNavigate = stubAction{can: false}
	require.True(t, Ready(d))
}

func TestMountOpensWhenReady(t *testing.T) {
	t.Parallel()

	s, effs := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: readyDescriptor()})
	require.Equal(t, PhaseOpening, s.Phase)
	require.True(t, s.Mounted)
	require.Equal(t, Handle{Gen: 1}, s.Handle)
	require.Equal(t, []actor.Effect{effOpen{Gen: 1, EndpointID: "ep-1", Trigger: TriggerMount}}, effs)
}

func TestMountDefersWhenUnready(t *testing.T) {
	t.Parallel()

	d := readyDescriptor()
	d.ObjectID = reactive.Pending[string](reactive.Loading)

	s, effs := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: d})
	require.Equal(t, PhaseIdle, s.Phase)
	require.True(t, s.Handle.Empty())
	require.Len(t, effs, 1)
	def, ok := effs[0].(effDeferred)
	require.True(t, ok)
	require.Equal(t, TriggerMount, def.Trigger)
	require.Contains(t, def.Reason, "object identifier")

	// A later dependency change retries.
	s, effs = step(t, s, cmdUpdate{Desc: readyDescriptor()})
	require.Equal(t, PhaseOpening, s.Phase)
	require.Equal(t, []actor.Effect{effOpen{Gen: 1, EndpointID: "ep-1", Trigger: TriggerUpdate}}, effs)
}

func TestUpdateNeverDoubleOpens(t *testing.T) {
	t.Parallel()

	s, _ := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: readyDescriptor()})
	s, effs := step(t, s, cmdUpdate{Desc: readyDescriptor()})
	require.Equal(t, []actor.Effect{effBusy{Trigger: TriggerUpdate}}, effs)
	require.Equal(t, Handle{Gen: 1}, s.Handle)

	s, _ = step(t, s, evOpened{Gen: 1})
	_, effs = step(t, s, cmdUpdate{Desc: readyDescriptor()})
	require.Equal(t, []actor.Effect{effBusy{Trigger: TriggerUpdate}}, effs)
}

func TestUpdateBeforeMountOnlyStores(t *testing.T) {
	t.Parallel()

	s, effs := step(t, State{Phase: PhaseIdle}, cmdUpdate{Desc: readyDescriptor()})
	require.Empty(t, effs)
	require.Equal(t, PhaseIdle, s.Phase)
	require.Equal(t, "ep-1", s.Desc.EndpointID.Value())
}

func TestOpenedSendsHandshake(t *testing.T) {
	t.Parallel()

	d := readyDescriptor()
	d.CloseParam = reactive.Of("bye")

	s, _ := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: d})
	s, effs := step(t, s, evOpened{Gen: 1})
	require.Equal(t, PhaseOpen, s.Phase)
	require.Equal(t, Handle{Gen: 1, Open: true}, s.Handle)
	require.Len(t, effs, 1)

	hs, ok := effs[0].(effSendHandshake)
	require.True(t, ok)
	require.Equal(t, int64(1), hs.Gen)
	require.Equal(t, "obj-1", hs.ObjectID)
	require.NotNil(t, hs.CloseParam)
	require.Equal(t, "bye", *hs.CloseParam)
}

func TestReconnectWithoutHandleIsFreshOpen(t *testing.T) {
	t.Parallel()

	mounted := State{Phase: PhaseIdle, Mounted: true, Desc: readyDescriptor()}
	s1, effs1 := step(t, mounted, cmdReconnect{})

	fresh, _ := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: readyDescriptor()})
	require.Equal(t, fresh.Phase, s1.Phase)
	require.Equal(t, fresh.Handle, s1.Handle)
	require.Equal(t, []actor.Effect{effOpen{Gen: 1, EndpointID: "ep-1", Trigger: TriggerReconnect}}, effs1)

	// Repeating it while the first attempt is pending swaps generations but
	// never holds two handles.
	s2, effs2 := step(t, s1, cmdReconnect{})
	require.Equal(t, Handle{Gen: 2}, s2.Handle)
	require.Equal(t, []actor.Effect{
		effClose{Gen: 1, Reason: TriggerReconnect},
		effOpen{Gen: 2, EndpointID: "ep-1", Trigger: TriggerReconnect},
	}, effs2)
}

func TestReconnectClosesLiveSessionFirst(t *testing.T) {
	t.Parallel()

	s, _ := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: readyDescriptor()})
	s, _ = step(t, s, evOpened{Gen: 1})

	s, effs := step(t, s, cmdReconnect{})
	require.Equal(t, []actor.Effect{
		effClose{Gen: 1, Reason: TriggerReconnect},
		effOpen{Gen: 2, EndpointID: "ep-1", Trigger: TriggerReconnect},
	}, effs)
	require.Equal(t, PhaseOpening, s.Phase)

	// The superseded connection reports its close later; it is ignored and
	// reaches no closure action.
	s2, effs := step(t, s, evClosed{Gen: 1, Event: closure.Event{Code: closure.CodeTimeout}})
	require.Empty(t, effs)
	require.Equal(t, s.Handle, s2.Handle)
}

func TestReconnectWhenUnreadyClearsHandle(t *testing.T) {
	t.Parallel()

	s, _ := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: readyDescriptor()})
	s, _ = step(t, s, evOpened{Gen: 1})

	d := readyDescriptor()
	d.EndpointID = reactive.Pending[string](reactive.Unavailable)
	s, _ = step(t, s, cmdUpdate{Desc: d})

	s, effs := step(t, s, cmdReconnect{})
	require.True(t, s.Handle.Empty())
	require.Equal(t, PhaseIdle, s.Phase)
	require.Len(t, effs, 2)
	require.Equal(t, effClose{Gen: 1, Reason: TriggerReconnect}, effs[0])
	require.IsType(t, effDeferred{}, effs[1])
}

func TestClosedClearsHandleBeforeClosureActions(t *testing.T) {
	t.Parallel()

	d := readyDescriptor()
	timeout := stubAction{can: true}
	d.OnTimeout = timeout

	s, _ := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: d})
	s, _ = step(t, s, evOpened{Gen: 1})

	ev := closure.Event{Code: closure.CodeTimeout, Reason: "idle"}
	s, effs := step(t, s, evClosed{Gen: 1, Event: ev})
	require.Equal(t, PhaseIdle, s.Phase)
	require.True(t, s.Handle.Empty())
	require.Equal(t, []actor.Effect{effApplyClosure{
		Gen:       1,
		Event:     ev,
		OnTimeout: timeout,
	}}, effs)

	// The next attempt is permitted.
	s, effs = step(t, s, cmdReconnect{})
	require.Equal(t, Handle{Gen: 2}, s.Handle)
	require.Equal(t, []actor.Effect{effOpen{Gen: 2, EndpointID: "ep-1", Trigger: TriggerReconnect}}, effs)
}

func TestDialFailureReturnsToIdle(t *testing.T) {
	t.Parallel()

	s, _ := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: readyDescriptor()})
	s, effs := step(t, s, dialFailed(1, nil))
	require.Equal(t, PhaseIdle, s.Phase)
	require.True(t, s.Handle.Empty())
	require.Len(t, effs, 1)
	require.Equal(t, closure.CodeAbnormal, effs[0].(effApplyClosure).Event.Code)
}

func TestStaleOpenIsClosed(t *testing.T) {
	t.Parallel()

	s, _ := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: readyDescriptor()})
	s, _ = step(t, s, cmdReconnect{})

	s2, effs := step(t, s, evOpened{Gen: 1})
	require.Equal(t, []actor.Effect{effClose{Gen: 1, Reason: "stale"}}, effs)
	require.Equal(t, s.Handle, s2.Handle)
	require.Equal(t, PhaseOpening, s2.Phase)
}

func TestFramesOnlyFromOpenGeneration(t *testing.T) {
	t.Parallel()

	out := reactive.NewAttribute("", false)
	d := readyDescriptor()
	d.Output = out
	d.Bindings = []dispatch.Binding{{Trigger: "ping", Action: stubAction{can: true}}}

	s, _ := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: d})

	// Not open yet.
	_, effs := step(t, s, evFrame{Gen: 1, Data: []byte(`{}`)})
	require.Empty(t, effs)

	s, _ = step(t, s, evOpened{Gen: 1})
	_, effs = step(t, s, evFrame{Gen: 7, Data: []byte(`{}`)})
	require.Empty(t, effs)

	_, effs = step(t, s, evFrame{Gen: 1, Data: []byte(`{"action":"ping"}`)})
	require.Len(t, effs, 1)
	disp := effs[0].(effDispatch)
	require.Equal(t, int64(1), disp.Gen)
	require.Equal(t, reactive.EditableValue[string](out), disp.Output)
	require.Len(t, disp.Bindings, 1)
}

func TestUnmountClosesWithoutActions(t *testing.T) {
	t.Parallel()

	d := readyDescriptor()
	d.OnNavigate = stubAction{can: true}

	s, _ := step(t, State{Phase: PhaseIdle}, cmdMount{Desc: d})
	s, _ = step(t, s, evOpened{Gen: 1})

	reply := make(chan struct{})
	s, effs := step(t, s, cmdUnmount{Reply: reply})
	require.Equal(t, PhaseUnmounted, s.Phase)
	require.True(t, s.Handle.Empty())
	require.False(t, s.Mounted)
	require.Equal(t, []actor.Effect{
		effClose{Gen: 1, Reason: "unmount"},
		effReply{Reply: reply},
	}, effs)

	// Everything after unmount is inert, and a late open is closed.
	for _, in := range []actor.Input{
		cmdMount{Desc: d},
		cmdUpdate{Desc: d},
		cmdReconnect{},
		evFrame{Gen: 1, Data: []byte(`{}`)},
		evClosed{Gen: 1, Event: closure.Event{Code: closure.CodeNavigatedAway}},
	} {
		next, effs := step(t, s, in)
		require.Empty(t, effs, "%T", in)
		require.Equal(t, s.Phase, next.Phase)
	}
	_, effs = step(t, s, evOpened{Gen: 2})
	require.Equal(t, []actor.Effect{effClose{Gen: 2, Reason: "unmounted"}}, effs)
}
