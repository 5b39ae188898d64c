package namer

import (
	"context"
	"testing"

	"github.com/wilyrpc/wily/internal/activity"
	"github.com/wilyrpc/wily/internal/addr"
	"github.com/wilyrpc/wily/internal/boundname"
	"github.com/wilyrpc/wily/internal/nametree"
	"github.com/wilyrpc/wily/internal/path"
)

func mustAddr() addr.Addr {
	return addr.Bound("10.0.0.1:9999")
}

func boundNamer(b boundname.Bound) Namer {
	return Func(func(ctx context.Context, tree nametree.Tree[path.Path]) *activity.Activity[nametree.Tree[boundname.Bound]] {
		return activity.NewWithState(activity.Ok(nametree.Leaf(b)))
	})
}

func negativeNamer() Namer {
	return Func(func(ctx context.Context, tree nametree.Tree[path.Path]) *activity.Activity[nametree.Tree[boundname.Bound]] {
		return activity.NewWithState(activity.Ok(nametree.Neg[boundname.Bound]()))
	})
}

func TestDirectResolutionNeedsNoFallback(t *testing.T) {
	b := boundname.New(mustAddr())
	n := OrElse(boundNamer(b), negativeNamer())
	act := n.Bind(context.Background(), nametree.Leaf(path.Parse("/s/foo")))
	set, ok := act.Current().IsOk()
	if !ok {
		t.Fatal("expected Ok state")
	}
	terms, evalOK := set.Eval()
	if !evalOK || len(terms) != 1 || !terms[0].Equal(b) {
		t.Fatalf("eval = %v, %v, want [%v]", terms, evalOK, b)
	}
}

func TestOrElseFallsBackOnNegative(t *testing.T) {
	b := boundname.New(mustAddr())
	n := OrElse(negativeNamer(), boundNamer(b))
	act := n.Bind(context.Background(), nametree.Leaf(path.Parse("/s/foo")))
	set, ok := act.Current().IsOk()
	if !ok {
		t.Fatal("expected Ok state from fallback")
	}
	terms, evalOK := set.Eval()
	if !evalOK || len(terms) != 1 || !terms[0].Equal(b) {
		t.Fatalf("eval = %v, %v, want fallback [%v]", terms, evalOK, b)
	}
}
