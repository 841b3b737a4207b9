// Package dispatch turns inbound session frames into attribute writes and
// host action invocations.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bhandras/wslink/internal/logger"
	"github.com/bhandras/wslink/internal/reactive"
)

// ErrMalformedFrame wraps JSON syntax errors of inbound frames.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is the session payload. Both fields are optional.
type Frame struct {
	Action  *string `json:"action"`
	Message *string `json:"message"`
}

// Binding pairs a trigger string with a host action. A nil Action means the
// binding has no action configured.
type Binding struct {
	Trigger string
	Action  reactive.Action
}

// Outcome describes what DispatchTrigger did. The runtime feeds it to metrics.
type Outcome string

const (
	OutcomeNone          Outcome = "none"
	OutcomeInvoked       Outcome = "invoked"
	OutcomeUnroutable    Outcome = "unroutable"
	OutcomeNotExecutable Outcome = "not_executable"
)

// Result summarizes one OnFrame call.
type Result struct {
	Trigger      string
	Outcome      Outcome
	MessageWrote bool
}

// Dispatcher routes frames for one session descriptor.
type Dispatcher struct {
	output   reactive.EditableValue[string]
	bindings []Binding
	log      logger.Logger
}

// New returns a Dispatcher. output may be nil when no output attribute is
// configured.
func New(output reactive.EditableValue[string], bindings []Binding, log logger.Logger) *Dispatcher {
	return &Dispatcher{output: output, bindings: bindings, log: log}
}

// OnFrame parses raw and applies it. Only invalid JSON is an error, wrapping
// ErrMalformedFrame, and then nothing is applied.
func (d *Dispatcher) OnFrame(raw []byte) (Result, error) {
	action, message, err := ParseFrame(raw)
	if err != nil {
		return Result{}, err
	}

	res := Result{Outcome: OutcomeNone}
	res.MessageWrote = d.SetMessage(message)
	res.Trigger = action
	res.Outcome = d.DispatchTrigger(res.Trigger)
	return res, nil
}

// ParseFrame extracts action and message from raw. Fields that are absent or
// not strings read as empty, as does any JSON value that is not an object.
func ParseFrame(raw []byte) (action, message string, err error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	fields, ok := doc.(map[string]any)
	if !ok {
		return "", "", nil
	}
	action, _ = fields["action"].(string)
	message, _ = fields["message"].(string)
	return action, message, nil
}

// SetMessage writes message into the output attribute. It reports whether a
// write happened.
func (d *Dispatcher) SetMessage(message string) bool {
	if message == "" || d.output == nil || d.output.ReadOnly() {
		return false
	}
	d.output.SetValue(message)
	return true
}

// Lookup returns the first binding whose trigger equals trigger. Later
// bindings with the same trigger are never reached.
func (d *Dispatcher) Lookup(trigger string) (Binding, bool) {
	for _, b := range d.bindings {
		if b.Trigger == trigger {
			return b, true
		}
	}
	return Binding{}, false
}

// DispatchTrigger invokes the action bound to trigger, at most once.
func (d *Dispatcher) DispatchTrigger(trigger string) Outcome {
	if trigger == "" {
		return OutcomeNone
	}
	b, ok := d.Lookup(trigger)
	if !ok {
		d.log.Warnf("trigger %q: not implemented", trigger)
		return OutcomeUnroutable
	}
	if !reactive.Executable(b.Action) {
		d.log.Errorf("trigger %q: action is not configured or cannot execute", trigger)
		return OutcomeNotExecutable
	}
	b.Action.Execute()
	return OutcomeInvoked
}
