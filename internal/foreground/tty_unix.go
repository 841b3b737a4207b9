//go:build darwin || linux

package foreground

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const (
	ttyPath = "/dev/tty"

	// DefaultPollInterval is how often TTYSource samples the foreground
	// process group.
	DefaultPollInterval = 500 * time.Millisecond
)

// TTYSource reports Active while this process group owns the controlling
// terminal and Background otherwise, so job control (ctrl+z, fg, bg) drives
// foreground transitions for a terminal host. SIGCONT is reported as a
// resume: Background, then an immediate sample.
type TTYSource struct {
	Interval time.Duration

	// foreground is replaced in tests.
	foreground func() (bool, error)
}

// NewTTYSource returns a TTYSource polling at interval.
func NewTTYSource(interval time.Duration) *TTYSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &TTYSource{Interval: interval, foreground: ttyForeground}
}

// Subscribe implements Source. Each subscription runs its own watcher
// goroutine until unsubscribed.
func (s *TTYSource) Subscribe(fn func(Transition)) func() {
	done := make(chan struct{})
	cont := make(chan os.Signal, 1)
	signal.Notify(cont, syscall.SIGCONT)

	go s.watch(fn, cont, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(cont)
			close(done)
		})
	}
}

func (s *TTYSource) watch(fn func(Transition), cont <-chan os.Signal, done <-chan struct{}) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	probe := s.foreground
	if probe == nil {
		probe = ttyForeground
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := Transition("")
	sample := func() {
		fg, err := probe()
		if err != nil {
			// No controlling terminal; nothing to report.
			return
		}
		t := Background
		if fg {
			t = Active
		}
		if t != last {
			last = t
			fn(t)
		}
	}

	sample()
	for {
		select {
		case <-done:
			return
		case <-cont:
			// The whole process was stopped, so no tick saw the
			// background period. Report it before sampling.
			if last == Active {
				last = Background
				fn(Background)
			}
			sample()
		case <-ticker.C:
			sample()
		}
	}
}

// ttyForeground reports whether our process group is the terminal's
// foreground process group.
func ttyForeground() (bool, error) {
	tty, err := os.OpenFile(ttyPath, os.O_RDWR, 0)
	if err != nil {
		return false, err
	}
	defer func() { _ = tty.Close() }()

	current, err := unix.IoctlGetInt(int(tty.Fd()), unix.TIOCGPGRP)
	if err != nil {
		return false, err
	}
	return current == syscall.Getpgrp(), nil
}
