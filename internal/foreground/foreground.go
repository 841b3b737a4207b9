// Package foreground turns application foreground/background transitions into
// session reconnect requests.
package foreground

import "sync"

// Transition is an application activity change.
type Transition string

const (
	// Active means the application is in the foreground.
	Active Transition = "active"
	// Inactive means the application is visible but not receiving input.
	Inactive Transition = "inactive"
	// Background means the application is not in the foreground.
	Background Transition = "background"
)

// Source delivers transitions to subscribers until they unsubscribe.
type Source interface {
	Subscribe(fn func(Transition)) (unsubscribe func())
}

// Broadcaster is a Source fed by Publish. Hosts that learn about activity
// changes from their own event loop use it directly.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Transition)
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func(Transition))}
}

// Subscribe implements Source.
func (b *Broadcaster) Subscribe(fn func(Transition)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers t to every current subscriber on the calling goroutine.
func (b *Broadcaster) Publish(t Transition) {
	b.mu.Lock()
	fns := make([]func(Transition), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}

// Subscribers reports how many subscriptions are live.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
