package trace

import (
	"errors"
	"testing"

	"github.com/wilyrpc/wily/internal/boundname"
	"github.com/wilyrpc/wily/internal/addr"
	"github.com/wilyrpc/wily/internal/dtab"
	"github.com/wilyrpc/wily/internal/nametree"
	"github.com/wilyrpc/wily/internal/path"
)

func collectSink() (Sink, *map[string]any) {
	m := map[string]any{}
	return func(key string, value any) { m[key] = value }, &m
}

func TestRecordSuccessAnnotatesPathDtabAndName(t *testing.T) {
	sink, got := collectSink()
	base := dtab.New(dtab.Rule{Prefix: path.Parse("/s"), Tree: nametree.Leaf(path.Parse("/base"))})
	local := dtab.Empty
	tracer := New(path.Parse("/s/foo"), base, local, sink)

	b := boundname.New(addr.Bound("10.0.0.1:1234"))
	tracer.RecordSuccess(b)

	if (*got)[KeyPath] != "/s/foo" {
		t.Fatalf("KeyPath = %v", (*got)[KeyPath])
	}
	if (*got)[KeyName] != b.ID.String() {
		t.Fatalf("KeyName = %v, want %v", (*got)[KeyName], b.ID.String())
	}
	if _, ok := (*got)[KeyDtabBase]; !ok {
		t.Fatal("missing KeyDtabBase annotation")
	}
	if _, ok := (*got)[KeyFailure]; ok {
		t.Fatal("KeyFailure must not be set on success")
	}
}

func TestRecordFailureAnnotatesErrorKind(t *testing.T) {
	sink, got := collectSink()
	tracer := New(path.Parse("/s/foo"), dtab.Empty, dtab.Empty, sink)

	tracer.RecordFailure(errors.New("boom"))

	if (*got)[KeyFailure] != "*errors.errorString" {
		t.Fatalf("KeyFailure = %v", (*got)[KeyFailure])
	}
}

func TestNilTracerIsNoOp(t *testing.T) {
	var tracer *NameTracer
	tracer.RecordSuccess(boundname.New(addr.Bound("x")))
	tracer.RecordFailure(errors.New("boom"))
}

func TestNilSinkIsNoOp(t *testing.T) {
	tracer := New(path.Parse("/s/foo"), dtab.Empty, dtab.Empty, nil)
	tracer.RecordSuccess(boundname.New(addr.Bound("x")))
	tracer.RecordFailure(errors.New("boom"))
}

func TestRenderCacheMemoizesPathShow(t *testing.T) {
	p := path.Parse("/s/foo/bar")
	first := globalRenderCache.render(p)
	second := globalRenderCache.render(p)
	if first != second || first != "/s/foo/bar" {
		t.Fatalf("render = %q, %q", first, second)
	}
}
