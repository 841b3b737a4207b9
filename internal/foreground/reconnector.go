package foreground

import (
	"sync"

	"github.com/bhandras/wslink/internal/logger"
	"github.com/bhandras/wslink/internal/metrics"
)

// Target is the session the reconnector drives. session.Controller satisfies
// it.
type Target interface {
	Ready() bool
	Reconnect() error
}

// Reconnector requests a reconnect each time the application returns to the
// foreground and the target is ready.
type Reconnector struct {
	src    Source
	target Target
	log    logger.Logger

	mu    sync.Mutex
	last  Transition
	unsub func()

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewReconnector returns a Reconnector. It does nothing until Start.
func NewReconnector(src Source, target Target, log logger.Logger) *Reconnector {
	return &Reconnector{src: src, target: target, log: log, last: Active}
}

// Start subscribes to the source. Only the first call subscribes.
func (r *Reconnector) Start() {
	r.startOnce.Do(func() {
		unsub := r.src.Subscribe(r.onTransition)
		r.mu.Lock()
		r.unsub = unsub
		r.mu.Unlock()
	})
}

// Stop unsubscribes. Only the first call has effect.
func (r *Reconnector) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		unsub := r.unsub
		r.unsub = nil
		r.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	})
}

func (r *Reconnector) onTransition(t Transition) {
	r.mu.Lock()
	prev := r.last
	r.last = t
	stopped := r.unsub == nil
	r.mu.Unlock()

	if stopped || t != Active || prev == Active {
		return
	}

	if !r.target.Ready() {
		r.log.Debugf("foreground resume: session not ready, reconnect deferred")
		metrics.RecordForegroundResume("deferred")
		return
	}
	r.log.Infof("foreground resume: reconnecting")
	if err := r.target.Reconnect(); err != nil {
		r.log.Warnf("foreground reconnect: %v", err)
		metrics.RecordForegroundResume("error")
		return
	}
	metrics.RecordForegroundResume("reconnect")
}
