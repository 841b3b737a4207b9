// Package reactive defines the host-supplied values and actions the session
// core reads, plus small thread-safe implementations hosts can use.
//
// A reactive value always carries a Status. The core only trusts Value when
// the status is Available.
package reactive

import (
	"sync"
	"sync/atomic"
)

// Status is the availability of a reactive value.
type Status string

const (
	// Available means Value holds a usable value.
	Available Status = "available"
	// Loading means the host is still resolving the value.
	Loading Status = "loading"
	// Unavailable means the host cannot supply the value.
	Unavailable Status = "unavailable"
)

// Value is a read-only reactive value.
type Value[T any] interface {
	Status() Status
	Value() T
}

// EditableValue is a reactive value the core may write to.
type EditableValue[T any] interface {
	Value[T]
	ReadOnly() bool
	SetValue(v T)
}

// Action is a host action. CanExecute gates Execute; Execute's outcome is not
// observed by the core.
type Action interface {
	CanExecute() bool
	Execute()
}

// IsAvailable reports whether v is non-nil and available.
func IsAvailable[T any](v Value[T]) bool {
	return v != nil && v.Status() == Available
}

// Executable reports whether a is non-nil and currently executable.
func Executable(a Action) bool {
	return a != nil && a.CanExecute()
}

// Static is an immutable value.
type Static[T any] struct {
	status Status
	value  T
}

// Of returns an available static value.
func Of[T any](v T) Static[T] {
	return Static[T]{status: Available, value: v}
}

// Pending returns a static value with the given non-available status.
func Pending[T any](status Status) Static[T] {
	return Static[T]{status: status}
}

func (s Static[T]) Status() Status { return s.status }
func (s Static[T]) Value() T       { return s.value }

// Var is a mutable value. Subscribers are notified after every change, on the
// goroutine that made the change.
type Var[T any] struct {
	mu     sync.RWMutex
	status Status
	value  T
	nextID int
	subs   map[int]func()
}

// NewVar returns a Var with the given initial status.
func NewVar[T any](status Status, value T) *Var[T] {
	return &Var[T]{status: status, value: value, subs: make(map[int]func())}
}

func (v *Var[T]) Status() Status {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

func (v *Var[T]) Value() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set stores value and marks the Var available.
func (v *Var[T]) Set(value T) {
	v.SetWithStatus(value, Available)
}

// SetWithStatus stores value and status together and notifies once.
func (v *Var[T]) SetWithStatus(value T, status Status) {
	v.mu.Lock()
	v.value = value
	v.status = status
	v.mu.Unlock()
	v.notify()
}

// SetStatus changes the status and keeps the last value.
func (v *Var[T]) SetStatus(status Status) {
	v.mu.Lock()
	v.status = status
	v.mu.Unlock()
	v.notify()
}

// Subscribe registers fn for change notifications and returns its remover.
func (v *Var[T]) Subscribe(fn func()) (unsubscribe func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.subs == nil {
		v.subs = make(map[int]func())
	}
	id := v.nextID
	v.nextID++
	v.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
		})
	}
}

func (v *Var[T]) notify() {
	v.mu.RLock()
	fns := make([]func(), 0, len(v.subs))
	for _, fn := range v.subs {
		fns = append(fns, fn)
	}
	v.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// Attribute is an editable Var with a read-only flag.
type Attribute[T any] struct {
	*Var[T]
	readOnly atomic.Bool
}

// NewAttribute returns an available attribute holding value.
func NewAttribute[T any](value T, readOnly bool) *Attribute[T] {
	a := &Attribute[T]{Var: NewVar(Available, value)}
	a.readOnly.Store(readOnly)
	return a
}

func (a *Attribute[T]) ReadOnly() bool { return a.readOnly.Load() }

// SetReadOnly changes the read-only flag. The value is kept.
func (a *Attribute[T]) SetReadOnly(readOnly bool) { a.readOnly.Store(readOnly) }

// SetValue writes v. Writes to a read-only attribute are dropped.
func (a *Attribute[T]) SetValue(v T) {
	if a.ReadOnly() {
		return
	}
	a.Set(v)
}

// ActionFunc adapts a function into an always-executable Action.
type ActionFunc func()

func (f ActionFunc) CanExecute() bool { return f != nil }
func (f ActionFunc) Execute() {
	if f != nil {
		f()
	}
}

// Disabled wraps an action and reports it as not executable.
type Disabled struct{ Action }

func (Disabled) CanExecute() bool { return false }
