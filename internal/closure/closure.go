// Package closure maps session closure codes to host actions.
package closure

import (
	"github.com/bhandras/wslink/internal/logger"
	"github.com/bhandras/wslink/internal/reactive"
)

const (
	// CodeTimeout is sent by the endpoint when the session timed out
	// (RFC 6455 "going away").
	CodeTimeout = 1001
	// CodeNavigatedAway arrives when the session ended without a status,
	// which the endpoint uses when the user navigated away.
	CodeNavigatedAway = 1005
	// CodeAbnormal is reported locally when the transport failed without a
	// close frame, including failed dials.
	CodeAbnormal = 1006
)

// Event is a transport closure.
type Event struct {
	Code   int
	Reason string
}

// Policy invokes the timeout and navigate actions for their closure codes.
// Either action may be nil.
type Policy struct {
	onTimeout  reactive.Action
	onNavigate reactive.Action
	log        logger.Logger
}

// New returns a Policy.
func New(onTimeout, onNavigate reactive.Action, log logger.Logger) *Policy {
	return &Policy{onTimeout: onTimeout, onNavigate: onNavigate, log: log}
}

// OnClose applies the policy to ev and returns the number of actions invoked.
func (p *Policy) OnClose(ev Event) int {
	p.log.Infof("session closed: code=%d reason=%q", ev.Code, ev.Reason)

	invoked := 0
	if ev.Code == CodeTimeout && reactive.Executable(p.onTimeout) {
		p.onTimeout.Execute()
		invoked++
	}
	if ev.Code == CodeNavigatedAway && reactive.Executable(p.onNavigate) {
		p.onNavigate.Execute()
		invoked++
	}
	return invoked
}
