//go:build !darwin && !linux

package foreground

import "time"

// DefaultPollInterval is how often TTYSource samples the foreground process
// group.
const DefaultPollInterval = 500 * time.Millisecond

// TTYSource never reports transitions on this platform.
type TTYSource struct {
	Interval time.Duration
}

// NewTTYSource returns a TTYSource.
func NewTTYSource(interval time.Duration) *TTYSource {
	return &TTYSource{Interval: interval}
}

// Subscribe implements Source.
func (s *TTYSource) Subscribe(func(Transition)) func() { return func() {} }
