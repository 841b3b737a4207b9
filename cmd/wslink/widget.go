package main

import (
	"fmt"
	"sync"

	"github.com/bhandras/wslink/internal/config"
	"github.com/bhandras/wslink/internal/dispatch"
	"github.com/bhandras/wslink/internal/hostaction"
	"github.com/bhandras/wslink/internal/reactive"
	"github.com/bhandras/wslink/internal/session"
)

// widgetValues are the reactive values behind one widget instance. They
// outlive reloads of the widget file so subscribers stay attached.
type widgetValues struct {
	endpoint   *reactive.Var[string]
	object     *reactive.Var[string]
	closeParam *reactive.Var[string]

	mu     sync.Mutex
	output *reactive.Attribute[string]
}

func newWidgetValues(w *config.Widget) *widgetValues {
	v := &widgetValues{
		endpoint:   reactive.NewVar(reactive.Unavailable, ""),
		object:     reactive.NewVar(reactive.Unavailable, ""),
		closeParam: reactive.NewVar(reactive.Unavailable, ""),
	}
	v.applyOutput(w)
	v.apply(w)
	return v
}

// applyOutput reconciles the output attribute with w. An attribute that
// survives a reload keeps its current value; only the read-only flag follows
// the file.
func (v *widgetValues) applyOutput(w *config.Widget) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case w.Output == nil:
		v.output = nil
	case v.output == nil:
		v.output = reactive.NewAttribute(w.Output.Initial, w.Output.ReadOnly)
	default:
		v.output.SetReadOnly(w.Output.ReadOnly)
	}
}

func (v *widgetValues) outputAttr() *reactive.Attribute[string] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.output
}

// apply copies w into the values. Empty strings make a value unavailable.
func (v *widgetValues) apply(w *config.Widget) {
	setString(v.endpoint, w.Endpoint)
	setString(v.object, w.Object)
	if w.CloseParam != nil {
		setString(v.closeParam, *w.CloseParam)
	}
}

func setString(v *reactive.Var[string], s string) {
	status := reactive.Available
	if s == "" {
		status = reactive.Unavailable
	}
	v.SetWithStatus(s, status)
}

// message returns the current output attribute value for host actions.
func (v *widgetValues) message() string {
	out := v.outputAttr()
	if out == nil {
		return ""
	}
	return out.Value()
}

// buildDescriptor assembles the session descriptor for w.
func buildDescriptor(w *config.Widget, v *widgetValues, env hostaction.Env) (session.Descriptor, error) {
	d := session.Descriptor{
		EndpointID: v.endpoint,
		ObjectID:   v.object,
	}
	if out := v.outputAttr(); w.Output != nil && out != nil {
		d.Output = out
	}
	if w.CloseParam != nil {
		d.CloseParam = v.closeParam
	}

	for i, b := range w.Bindings {
		binding := dispatch.Binding{Trigger: b.Trigger}
		if b.Action != nil {
			a, err := hostaction.Build(fmt.Sprintf("binding[%d]:%s", i, b.Trigger), *b.Action, env)
			if err != nil {
				return session.Descriptor{}, err
			}
			binding.Action = a
		}
		d.Bindings = append(d.Bindings, binding)
	}

	if w.OnTimeout != nil {
		a, err := hostaction.Build("onTimeout", *w.OnTimeout, env)
		if err != nil {
			return session.Descriptor{}, err
		}
		d.OnTimeout = a
	}
	if w.OnNavigate != nil {
		a, err := hostaction.Build("onNavigate", *w.OnNavigate, env)
		if err != nil {
			return session.Descriptor{}, err
		}
		d.OnNavigate = a
	}
	return d, nil
}
