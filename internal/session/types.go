package session

import (
	"github.com/bhandras/wslink/internal/actor"
	"github.com/bhandras/wslink/internal/closure"
	"github.com/bhandras/wslink/internal/dispatch"
	"github.com/bhandras/wslink/internal/reactive"
)

// Phase is the lifecycle phase of the controller.
type Phase string

const (
	// PhaseIdle means there is no handle.
	PhaseIdle Phase = "idle"
	// PhaseOpening means a handle exists and the transport open is pending.
	PhaseOpening Phase = "opening"
	// PhaseOpen means the transport acknowledged the open.
	PhaseOpen Phase = "open"
	// PhaseUnmounted is terminal.
	PhaseUnmounted Phase = "unmounted"
)

// Open attempt triggers, used in logs and metrics.
const (
	TriggerMount     = "mount"
	TriggerUpdate    = "update"
	TriggerReconnect = "reconnect"
)

// Handle is the session handle slot. The zero Handle is empty.
type Handle struct {
	// Gen is the attempt generation that owns the live connection.
	Gen int64
	// Open is set once the transport acknowledged the open.
	Open bool
}

// Empty reports whether the slot holds no connection.
func (h Handle) Empty() bool { return h.Gen == 0 }

// State is owned by the controller loop.
type State struct {
	Phase   Phase
	Mounted bool
	Desc    Descriptor

	// LastGen is the most recently issued attempt generation. Transport events
	// tagged with any other generation are stale.
	LastGen int64
	Handle  Handle
}

// Commands.

type cmdMount struct {
	actor.InputBase
	Desc Descriptor
}

type cmdUpdate struct {
	actor.InputBase
	Desc Descriptor
}

type cmdReconnect struct {
	actor.InputBase
}

type cmdUnmount struct {
	actor.InputBase
	Reply chan struct{}
}

// Transport events. Gen identifies the attempt that produced them.

type evOpened struct {
	actor.InputBase
	Gen int64
}

type evFrame struct {
	actor.InputBase
	Gen  int64
	Data []byte
}

type evClosed struct {
	actor.InputBase
	Gen   int64
	Event closure.Event
	Err   error
}

// Effects.

// effOpen starts a transport open for Gen.
type effOpen struct {
	actor.EffectBase
	Gen        int64
	EndpointID string
	Trigger    string
}

// effClose closes whatever connection Gen owns, tolerating errors.
type effClose struct {
	actor.EffectBase
	Gen    int64
	Reason string
}

// effDeferred records a connection attempt the readiness gate refused.
type effDeferred struct {
	actor.EffectBase
	Trigger string
	Reason  string
}

// effBusy records a connection attempt skipped because a handle exists.
type effBusy struct {
	actor.EffectBase
	Trigger string
}

type effSendHandshake struct {
	actor.EffectBase
	Gen        int64
	ObjectID   string
	CloseParam *string
}

type effDispatch struct {
	actor.EffectBase
	Gen      int64
	Data     []byte
	Output   reactive.EditableValue[string]
	Bindings []dispatch.Binding
}

type effApplyClosure struct {
	actor.EffectBase
	Gen        int64
	Event      closure.Event
	Err        error
	OnTimeout  reactive.Action
	OnNavigate reactive.Action
}

// effReply closes Reply once all earlier effects of the same step ran.
type effReply struct {
	actor.EffectBase
	Reply chan struct{}
}
