package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrNoWidget is returned when the widget file does not exist.
var ErrNoWidget = errors.New("widget file not found")

// Widget is one widget instance definition.
//
//	endpoint: 6f1c...        # generated when empty
//	object: order-42
//	output:
//	  readOnly: false
//	closeParam: session-ended
//	bindings:
//	  - trigger: ping
//	    action: {kind: print}
//	onTimeout: {kind: log, title: timed out}
//	onNavigate: {kind: quit}
type Widget struct {
	Endpoint   string    `yaml:"endpoint"`
	Object     string    `yaml:"object"`
	Output     *Output   `yaml:"output,omitempty"`
	CloseParam *string   `yaml:"closeParam,omitempty"`
	Bindings   []Binding `yaml:"bindings,omitempty"`
	OnTimeout  *Action   `yaml:"onTimeout,omitempty"`
	OnNavigate *Action   `yaml:"onNavigate,omitempty"`

	// EndpointGenerated is set when Endpoint was not in the file.
	EndpointGenerated bool `yaml:"-"`
}

// Output configures the output attribute.
type Output struct {
	ReadOnly bool   `yaml:"readOnly"`
	Initial  string `yaml:"initial,omitempty"`
}

// Binding pairs a trigger with an action. A nil Action is allowed.
type Binding struct {
	Trigger string  `yaml:"trigger"`
	Action  *Action `yaml:"action,omitempty"`
}

// Action describes a host action. Kind selects the implementation; the other
// fields are interpreted per kind.
type Action struct {
	Kind    string   `yaml:"kind"`
	Enabled *bool    `yaml:"enabled,omitempty"`
	Title   string   `yaml:"title,omitempty"`
	Message string   `yaml:"message,omitempty"`
	Command []string `yaml:"command,omitempty"`
}

// IsEnabled reports whether the action may execute. Actions are enabled
// unless explicitly disabled.
func (a Action) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// LoadWidget reads and validates a widget file. A missing endpoint identifier
// is replaced with a random one.
func LoadWidget(path string) (*Widget, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoWidget, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read widget file: %w", err)
	}
	return ParseWidget(data)
}

// ParseWidget decodes a widget definition. Unknown keys are rejected.
func ParseWidget(data []byte) (*Widget, error) {
	var w Widget
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&w); errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse widget: empty document")
	} else if err != nil {
		return nil, fmt.Errorf("parse widget: %w", err)
	}
	if strings.TrimSpace(w.Endpoint) == "" {
		w.Endpoint = uuid.NewString()
		w.EndpointGenerated = true
	}
	if err := w.validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

func (w *Widget) validate() error {
	for i, b := range w.Bindings {
		if strings.TrimSpace(b.Trigger) == "" {
			return fmt.Errorf("binding %d: empty trigger", i)
		}
		if b.Action != nil && b.Action.Kind == "" {
			return fmt.Errorf("binding %d (%s): action kind is required", i, b.Trigger)
		}
	}
	if w.OnTimeout != nil && w.OnTimeout.Kind == "" {
		return fmt.Errorf("onTimeout: action kind is required")
	}
	if w.OnNavigate != nil && w.OnNavigate.Kind == "" {
		return fmt.Errorf("onNavigate: action kind is required")
	}
	return nil
}
