// Package namer implements Namer: the capability that resolves a
// NameTree[Path] into a reactive NameTree[Bound], composable with OrElse.
package namer

import (
	"context"

	"github.com/wilyrpc/wily/internal/activity"
	"github.com/wilyrpc/wily/internal/boundname"
	"github.com/wilyrpc/wily/internal/nametree"
	"github.com/wilyrpc/wily/internal/path"
)

// Namer resolves a NameTree[Path] to a reactive NameTree[Bound].
type Namer interface {
	Bind(ctx context.Context, tree nametree.Tree[path.Path]) *activity.Activity[nametree.Tree[boundname.Bound]]
}

// Func adapts a plain function to the Namer interface.
type Func func(ctx context.Context, tree nametree.Tree[path.Path]) *activity.Activity[nametree.Tree[boundname.Bound]]

// Bind implements Namer.
func (f Func) Bind(ctx context.Context, tree nametree.Tree[path.Path]) *activity.Activity[nametree.Tree[boundname.Bound]] {
	return f(ctx, tree)
}

// orElseNamer tries first, falling back to second whenever first's
// resolution is negative (ok=false after Eval) or Failed for a given
// request. second is bound only the first time such a fallback is needed;
// from then on the composed Activity re-evaluates whenever either upstream
// Activity transitions.
type orElseNamer struct {
	first  Namer
	second Namer
}

// OrElse returns a Namer that falls back to other whenever n resolves
// negatively.
func (n Func) OrElse(other Namer) Namer {
	return orElseNamer{first: n, second: other}
}

// OrElse composes two Namers, named as a free function so any Namer
// implementation (not just Func) can be composed.
func OrElse(first, second Namer) Namer {
	return orElseNamer{first: first, second: second}
}

func (o orElseNamer) Bind(ctx context.Context, tree nametree.Tree[path.Path]) *activity.Activity[nametree.Tree[boundname.Bound]] {
	out := activity.New[nametree.Tree[boundname.Bound]]()

	firstAct := o.first.Bind(ctx, tree)
	var secondAct *activity.Activity[nametree.Tree[boundname.Bound]]
	var secondSub activity.Closable

	var latestFirst activity.State[nametree.Tree[boundname.Bound]]
	haveFirst := false

	recompute := func() {
		if haveFirst {
			if result, ok := latestFirst.IsOk(); ok {
				if _, evalOK := result.Eval(); evalOK {
					out.Update(activity.Ok(result))
					return
				}
			} else if latestFirst.IsPending() {
				out.Update(activity.Pending[nametree.Tree[boundname.Bound]]())
				return
			} else if err, failed := latestFirst.IsFailed(); failed && secondAct == nil {
				out.Update(activity.Failed[nametree.Tree[boundname.Bound]](err))
				return
			}
		}
		if secondAct != nil {
			out.Update(secondAct.Current())
		}
	}

	firstSub := firstAct.Respond(func(s activity.State[nametree.Tree[boundname.Bound]]) {
		latestFirst = s
		haveFirst = true
		needsSecond := false
		if result, ok := s.IsOk(); ok {
			if _, evalOK := result.Eval(); !evalOK {
				needsSecond = true
			}
		} else if _, failed := s.IsFailed(); failed {
			needsSecond = true
		}
		if needsSecond && secondAct == nil {
			secondAct = o.second.Bind(ctx, tree)
			secondSub = secondAct.Respond(func(activity.State[nametree.Tree[boundname.Bound]]) {
				recompute()
			})
		}
		recompute()
	})

	_ = firstSub
	_ = secondSub
	return out
}

// Global is the process-wide fallback Namer, consulted whenever a
// composed Namer chain resolves negatively. It starts out permanently
// negative; wire a real fallback via SetGlobal at startup.
var globalNamer Namer = Func(func(ctx context.Context, tree nametree.Tree[path.Path]) *activity.Activity[nametree.Tree[boundname.Bound]] {
	return activity.NewWithState(activity.Ok(nametree.Neg[boundname.Bound]()))
})

// Global returns the current process-wide fallback Namer.
func Global() Namer {
	return globalNamer
}

// SetGlobal installs the process-wide fallback Namer.
func SetGlobal(n Namer) {
	globalNamer = n
}
