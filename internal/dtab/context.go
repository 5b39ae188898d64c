package dtab

import (
	"context"
	"sync/atomic"
)

// baseDtab is the process-wide ambient base DTab, set once at init (see
// config.LoadBaseDTab) and read on every BindingFactory.Apply. It is
// task- (not goroutine-) scoped in the sense that it simply has no scope:
// it is a single process-global value, per spec.md §9.
var baseDtab atomic.Pointer[Dtab]

func init() {
	baseDtab.Store(&Empty)
}

// SetBase installs the process-wide base DTab. Intended to be called once
// at startup (config.LoadBaseDTab) or from tests.
func SetBase(d Dtab) {
	baseDtab.Store(&d)
}

// Base returns the current process-wide base DTab.
func Base() Dtab {
	return *baseDtab.Load()
}

// localKey is the context.Context key for the request-scoped local DTab.
// Using a task-local context value (rather than a goroutine-local) is
// required because async continuations may hop threads/goroutines
// (spec.md §9).
type localKey struct{}

// WithLocal returns a context carrying d as the ambient local DTab for
// everything derived from ctx.
func WithLocal(ctx context.Context, d Dtab) context.Context {
	return context.WithValue(ctx, localKey{}, d)
}

// Local returns the ambient local DTab carried by ctx, or Empty if none
// was set.
func Local(ctx context.Context) Dtab {
	if d, ok := ctx.Value(localKey{}).(Dtab); ok {
		return d
	}
	return Empty
}
