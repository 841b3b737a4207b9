package session

import (
	"context"
	"errors"
	"sync"

	"github.com/bhandras/wslink/internal/actor"
	"github.com/bhandras/wslink/internal/closure"
	"github.com/bhandras/wslink/internal/dispatch"
	"github.com/bhandras/wslink/internal/hostctx"
	"github.com/bhandras/wslink/internal/logger"
	"github.com/bhandras/wslink/internal/metrics"
	"github.com/bhandras/wslink/internal/transport"
)

// slot is the runtime side of a handle: the in-flight dial or the live
// connection of one generation.
type slot struct {
	cancel context.CancelFunc
	conn   transport.Conn
}

// Runtime performs lifecycle effects. It never changes State; results go
// back to the loop as events tagged with their generation.
type Runtime struct {
	dialer  transport.Dialer
	host    hostctx.Context
	log     logger.Logger
	onError func(error)

	mu    sync.Mutex
	slots map[int64]*slot
}

var _ actor.Runtime = (*Runtime)(nil)

// NewRuntime returns a Runtime. onError receives malformed-frame errors and
// may be nil.
func NewRuntime(dialer transport.Dialer, host hostctx.Context, log logger.Logger, onError func(error)) *Runtime {
	return &Runtime{
		dialer:  dialer,
		host:    host,
		log:     log,
		onError: onError,
		slots:   make(map[int64]*slot),
	}
}

// HandleEffects implements actor.Runtime.
func (r *Runtime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case effOpen:
			r.open(ctx, e, emit)
		case effClose:
			r.close(e)
		case effDeferred:
			r.log.Debugf("connect deferred (%s): %s", e.Trigger, e.Reason)
			metrics.RecordConnectAttempt(e.Trigger, "deferred")
		case effBusy:
			r.log.Debugf("connect skipped (%s): session handle in use", e.Trigger)
			metrics.RecordConnectAttempt(e.Trigger, "busy")
		case effSendHandshake:
			r.sendHandshake(e)
		case effDispatch:
			r.dispatch(e)
		case effApplyClosure:
			r.applyClosure(e)
		case effReply:
			close(e.Reply)
		}
	}
}

// Stop implements actor.Runtime. It closes every connection still owned.
func (r *Runtime) Stop() {
	r.mu.Lock()
	slots := r.slots
	r.slots = make(map[int64]*slot)
	r.mu.Unlock()

	for gen, s := range slots {
		r.release(gen, s, "stop")
	}
}

func (r *Runtime) open(ctx context.Context, e effOpen, emit func(actor.Input)) {
	log := r.log.Int64("gen", e.Gen)

	url, err := hostctx.EndpointURL(r.host.BaseURL(), e.EndpointID)
	if err != nil {
		log.Errorf("build endpoint url: %v", err)
		emit(dialFailed(e.Gen, err))
		return
	}

	dialCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.slots[e.Gen] = &slot{cancel: cancel}
	r.mu.Unlock()

	metrics.RecordConnectAttempt(e.Trigger, "opening")
	log.Infof("opening session (%s): %s", e.Trigger, url)

	go func() {
		conn, err := r.dialer.Dial(dialCtx, url)

		r.mu.Lock()
		s, owned := r.slots[e.Gen]
		if owned && err == nil {
			s.conn = conn
		}
		if owned && err != nil {
			delete(r.slots, e.Gen)
		}
		r.mu.Unlock()

		switch {
		case !owned:
			// Closed while dialing.
			if conn != nil {
				_ = conn.Close()
			}
			return
		case err != nil:
			cancel()
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Warnf("open failed: %v", err)
			emit(dialFailed(e.Gen, err))
			return
		}

		emit(evOpened{Gen: e.Gen})
		conn.Listen(transport.Handler{
			OnMessage: func(data []byte) {
				emit(evFrame{Gen: e.Gen, Data: data})
			},
			OnClose: func(ev transport.CloseEvent) {
				r.forget(e.Gen, conn)
				emit(evClosed{
					Gen:   e.Gen,
					Event: closure.Event{Code: ev.Code, Reason: ev.Reason},
					Err:   ev.Err,
				})
			},
		})
	}()
}

// forget drops the slot for gen if it still holds conn.
func (r *Runtime) forget(gen int64, conn transport.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[gen]; ok && s.conn == conn {
		delete(r.slots, gen)
		s.cancel()
	}
}

func (r *Runtime) close(e effClose) {
	r.mu.Lock()
	s, ok := r.slots[e.Gen]
	delete(r.slots, e.Gen)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.release(e.Gen, s, e.Reason)
}

func (r *Runtime) release(gen int64, s *slot, reason string) {
	log := r.log.Int64("gen", gen)
	s.cancel()
	if s.conn == nil || s.conn.Closed() {
		return
	}
	log.Debugf("closing session (%s)", reason)
	if err := s.conn.Close(); err != nil {
		log.Warnf("close during %s failed: %v", reason, err)
	}
}

func (r *Runtime) conn(gen int64) transport.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[gen]; ok {
		return s.conn
	}
	return nil
}

func (r *Runtime) sendHandshake(e effSendHandshake) {
	log := r.log.Int64("gen", e.Gen)
	metrics.RecordOpen()

	conn := r.conn(e.Gen)
	if conn == nil {
		log.Debugf("handshake skipped: connection already gone")
		return
	}
	hs := Handshake{
		ObjectID:   e.ObjectID,
		CSRFToken:  r.host.CSRFToken(),
		CloseParam: e.CloseParam,
	}
	if err := conn.SendJSON(hs); err != nil {
		log.Warnf("send handshake: %v", err)
		return
	}
	log.Infof("session open, handshake sent for object %s", e.ObjectID)
}

func (r *Runtime) dispatch(e effDispatch) {
	d := dispatch.New(e.Output, e.Bindings, r.log)
	res, err := d.OnFrame(e.Data)
	if err != nil {
		metrics.RecordFrame("malformed")
		r.log.Int64("gen", e.Gen).Errorf("inbound frame: %v", err)
		if r.onError != nil {
			r.onError(err)
		}
		return
	}
	metrics.RecordFrame(string(res.Outcome))
}

func (r *Runtime) applyClosure(e effApplyClosure) {
	metrics.RecordClose(e.Event.Code)
	if e.Err != nil {
		r.log.Int64("gen", e.Gen).Debugf("transport error: %v", e.Err)
	}
	n := closure.New(e.OnTimeout, e.OnNavigate, r.log).OnClose(e.Event)
	metrics.RecordClosureActions(n)
}
