// Package activity implements the reactive Activity/Var primitive the rest
// of the binding core is layered on: a push-subscribed value that is
// always in one of {Pending, Ok(T), Failed(error)}, delivering its current
// state immediately on subscribe and every subsequent transition after.
package activity

import "sync"

// State tags an Activity's current value.
type State[T any] struct {
	kind   stateKind
	value  T
	err    error
	hasVal bool
}

type stateKind int

const (
	kindPending stateKind = iota
	kindOk
	kindFailed
)

// Pending constructs the Pending state.
func Pending[T any]() State[T] {
	return State[T]{kind: kindPending}
}

// Ok constructs the Ok(value) state.
func Ok[T any](v T) State[T] {
	return State[T]{kind: kindOk, value: v, hasVal: true}
}

// Failed constructs the Failed(err) state.
func Failed[T any](err error) State[T] {
	return State[T]{kind: kindFailed, err: err}
}

// IsPending reports whether the state is Pending.
func (s State[T]) IsPending() bool { return s.kind == kindPending }

// IsOk reports whether the state is Ok, returning its value.
func (s State[T]) IsOk() (T, bool) {
	if s.kind == kindOk {
		return s.value, true
	}
	var zero T
	return zero, false
}

// IsFailed reports whether the state is Failed, returning its error.
func (s State[T]) IsFailed() (error, bool) {
	if s.kind == kindFailed {
		return s.err, true
	}
	return nil, false
}

// Closable disposes a subscription. Calling Close more than once is safe.
type Closable interface {
	Close()
}

type closableFunc func()

func (f closableFunc) Close() { f() }

// Activity is a reactive value backed by a set of subscribers. The zero
// value is an Activity in the Pending state; construct one with New or
// NewWithState, or obtain one from a Namer.
type Activity[T any] struct {
	mu      sync.Mutex
	current State[T]
	subs    map[int]func(State[T])
	nextSub int
}

// New creates an Activity starting in the Pending state.
func New[T any]() *Activity[T] {
	return &Activity[T]{current: Pending[T]()}
}

// NewWithState creates an Activity starting in the given state.
func NewWithState[T any](initial State[T]) *Activity[T] {
	return &Activity[T]{current: initial}
}

// Update transitions the Activity to a new state and notifies current
// subscribers. Handlers run synchronously on the calling goroutine, under
// the Activity's own lock released before dispatch (a subscriber may
// itself call Respond/Close without deadlocking, but must not block
// indefinitely, since Update returns only after every handler has run).
func (a *Activity[T]) Update(s State[T]) {
	a.mu.Lock()
	a.current = s
	handlers := make([]func(State[T]), 0, len(a.subs))
	for _, h := range a.subs {
		handlers = append(handlers, h)
	}
	a.mu.Unlock()

	for _, h := range handlers {
		h(s)
	}
}

// Respond subscribes handler to every future transition, delivering the
// current value immediately (idempotent-on-subscribe). Returns a Closable
// that removes the subscription.
func (a *Activity[T]) Respond(handler func(State[T])) Closable {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	if a.subs == nil {
		a.subs = make(map[int]func(State[T]))
	}
	a.subs[id] = handler
	current := a.current
	a.mu.Unlock()

	handler(current)

	return closableFunc(func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	})
}

// Current returns the Activity's current state without subscribing.
func (a *Activity[T]) Current() State[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Var is a reactive cell holding a value that may change over time. It is
// modeled as a restricted Activity that is never Pending/Failed once
// seeded — used for boundname.Bound.Addr.
type Var[T any] struct {
	act *Activity[T]
}

// NewVar creates a Var seeded with an initial value.
func NewVar[T any](initial T) *Var[T] {
	return &Var[T]{act: NewWithState(Ok(initial))}
}

// Get returns the current value.
func (v *Var[T]) Get() T {
	val, _ := v.act.Current().IsOk()
	return val
}

// Set updates the value and notifies observers.
func (v *Var[T]) Set(value T) {
	v.act.Update(Ok(value))
}

// Observe subscribes to every future value, delivering the current value
// immediately.
func (v *Var[T]) Observe(handler func(T)) Closable {
	return v.act.Respond(func(s State[T]) {
		if val, ok := s.IsOk(); ok {
			handler(val)
		}
	})
}
