package session

import (
	"fmt"

	"github.com/bhandras/wslink/internal/dispatch"
	"github.com/bhandras/wslink/internal/reactive"
)

// Descriptor identifies the remote endpoint of one widget instance and the
// values the session depends on. Output, CloseParam, OnTimeout and OnNavigate
// are optional and nil when not configured.
type Descriptor struct {
	EndpointID reactive.Value[string]
	ObjectID   reactive.Value[string]
	Output     reactive.EditableValue[string]
	CloseParam reactive.Value[string]
	Bindings   []dispatch.Binding
	OnTimeout  reactive.Action
	OnNavigate reactive.Action
}

// Ready reports whether a connection attempt may proceed for d. It reads the
// current status of every value and is never cached.
func Ready(d Descriptor) bool {
	ok, _ := readiness(d)
	return ok
}

// readiness is Ready plus the first failing condition.
func readiness(d Descriptor) (bool, string) {
	if !reactive.IsAvailable(d.ObjectID) {
		return false, "object identifier " + statusOf(d.ObjectID)
	}
	if !reactive.IsAvailable(d.EndpointID) {
		return false, "endpoint identifier " + statusOf(d.EndpointID)
	}
	if d.Output != nil && d.Output.Status() != reactive.Available {
		return false, "output attribute " + string(d.Output.Status())
	}
	if d.CloseParam != nil && d.CloseParam.Status() != reactive.Available {
		return false, "close parameter " + string(d.CloseParam.Status())
	}
	for i, b := range d.Bindings {
		if b.Action != nil && !b.Action.CanExecute() {
			return false, fmt.Sprintf("binding %d (%q) cannot execute", i, b.Trigger)
		}
	}
	return true, ""
}

func statusOf(v reactive.Value[string]) string {
	if v == nil {
		return "not configured"
	}
	return string(v.Status())
}

// Handshake is the single frame sent right after the transport opens.
type Handshake struct {
	ObjectID   string  `json:"objectId"`
	CSRFToken  string  `json:"csrfToken"`
	CloseParam *string `json:"onCloseMicroflowParameterValue,omitempty"`
}
