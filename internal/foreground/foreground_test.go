package foreground

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/bhandras/wslink/internal/logger"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	ready      atomic.Bool
	reconnects atomic.Int32
	err        error
}

func (f *fakeTarget) Ready() bool { return f.ready.Load() }

func (f *fakeTarget) Reconnect() error {
	f.reconnects.Add(1)
	return f.err
}

func TestReconnectOnForegroundResume(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	target := &fakeTarget{}
	target.ready.Store(true)

	r := NewReconnector(b, target, logger.Nop())
	r.Start()
	defer r.Stop()

	// Already active: no resume.
	b.Publish(Active)
	require.Zero(t, target.reconnects.Load())

	b.Publish(Background)
	b.Publish(Active)
	require.EqualValues(t, 1, target.reconnects.Load())

	b.Publish(Inactive)
	b.Publish(Active)
	require.EqualValues(t, 2, target.reconnects.Load())

	b.Publish(Active)
	require.EqualValues(t, 2, target.reconnects.Load())
}

func TestResumeWhileUnreadyDoesNothing(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	target := &fakeTarget{}

	r := NewReconnector(b, target, logger.Nop())
	r.Start()
	defer r.Stop()

	b.Publish(Background)
	b.Publish(Active)
	require.Zero(t, target.reconnects.Load())

	// Becoming ready later does not replay the missed resume.
	target.ready.Store(true)
	b.Publish(Active)
	require.Zero(t, target.reconnects.Load())
}

func TestReconnectErrorIsAbsorbed(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	target := &fakeTarget{err: errors.New("unmounted")}
	target.ready.Store(true)

	r := NewReconnector(b, target, logger.Nop())
	r.Start()
	defer r.Stop()

	b.Publish(Background)
	require.NotPanics(t, func() { b.Publish(Active) })
	require.EqualValues(t, 1, target.reconnects.Load())
}

func TestSubscriptionLifecycle(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	target := &fakeTarget{}
	target.ready.Store(true)
	r := NewReconnector(b, target, logger.Nop())

	r.Start()
	r.Start()
	require.Equal(t, 1, b.Subscribers())

	r.Stop()
	r.Stop()
	require.Zero(t, b.Subscribers())

	b.Publish(Background)
	b.Publish(Active)
	require.Zero(t, target.reconnects.Load())
}

func TestBroadcasterUnsubscribeOnce(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster()
	var got []Transition
	unsub := b.Subscribe(func(t Transition) { got = append(got, t) })
	other := b.Subscribe(func(Transition) {})

	b.Publish(Background)
	unsub()
	unsub()
	b.Publish(Active)

	require.Equal(t, []Transition{Background}, got)
	require.Equal(t, 1, b.Subscribers())
	other()
	require.Zero(t, b.Subscribers())
}
