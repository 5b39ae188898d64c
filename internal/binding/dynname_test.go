package binding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wilyrpc/wily/internal/activity"
	"github.com/wilyrpc/wily/internal/addr"
	"github.com/wilyrpc/wily/internal/boundname"
	"github.com/wilyrpc/wily/internal/cache"
	"github.com/wilyrpc/wily/internal/dtab"
	"github.com/wilyrpc/wily/internal/nametree"
	"github.com/wilyrpc/wily/internal/path"
	"github.com/wilyrpc/wily/internal/svcfactory"
	"github.com/wilyrpc/wily/internal/trace"
)

type stubService struct{}

func (stubService) Serve(ctx context.Context, req string) (string, error) { return "ok:" + req, nil }
func (stubService) Close(ctx context.Context) error                       { return nil }
func (stubService) IsAvailable() bool                                     { return true }

type stubFactory struct{}

func (stubFactory) Apply(ctx context.Context, conn svcfactory.Conn) (svcfactory.Service[string, string], error) {
	return stubService{}, nil
}
func (stubFactory) Close(ctx context.Context) error { return nil }
func (stubFactory) IsAvailable() bool               { return true }

func newTestNameCache() *cache.FactoryCache[string, string, string] {
	builder := func(key string) (svcfactory.ServiceFactory[string, string], error) {
		return stubFactory{}, nil
	}
	return cache.New[string, string, string](cache.DefaultNameCacheCapacity, builder, "test")
}

func TestDynNameFactoryQueuesWhilePendingThenDrains(t *testing.T) {
	names := activity.New[nametree.Tree[boundname.Bound]]()
	nameCache := newTestNameCache()
	dyn := NewDynNameFactory[string, string](path.Parse("/s/foo"), names, nameCache, nil, func(boundname.Bound) {})

	type result struct {
		svc svcfactory.Service[string, string]
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		svc, err := dyn.Apply(context.Background(), "conn")
		resCh <- result{svc, err}
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-resCh:
		t.Fatal("Apply returned before resolution landed")
	default:
	}

	bound := boundname.New(addr.Bound("10.0.0.1:80"))
	names.Update(activity.Ok(nametree.Leaf(bound)))

	select {
	case r := <-resCh:
		if r.err != nil {
			t.Fatalf("unexpected error: %v", r.err)
		}
		if r.svc == nil {
			t.Fatal("expected a service")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for queued Apply to drain")
	}
}

func TestDynNameFactoryNegativeResolutionFailsWithNoBrokers(t *testing.T) {
	names := activity.New[nametree.Tree[boundname.Bound]]()
	nameCache := newTestNameCache()
	dyn := NewDynNameFactory[string, string](path.Parse("/s/foo"), names, nameCache, nil, func(boundname.Bound) {})

	names.Update(activity.Ok(nametree.Neg[boundname.Bound]()))

	_, err := dyn.Apply(context.Background(), "conn")
	if err == nil {
		t.Fatal("expected an error for negative resolution")
	}
	if _, ok := err.(*svcfactory.NoBrokersAvailable); !ok {
		t.Fatalf("err = %T, want *svcfactory.NoBrokersAvailable", err)
	}
}

func TestDynNameFactoryCancellationWhilePending(t *testing.T) {
	names := activity.New[nametree.Tree[boundname.Bound]]()
	nameCache := newTestNameCache()
	dyn := NewDynNameFactory[string, string](path.Parse("/s/foo"), names, nameCache, nil, func(boundname.Bound) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dyn.Apply(ctx, "conn")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if _, ok := err.(*svcfactory.CancelledConnection); !ok {
		t.Fatalf("err = %T, want *svcfactory.CancelledConnection", err)
	}
}

func TestDynNameFactoryQueuedDrainOnFailureTracesEachRequest(t *testing.T) {
	names := activity.New[nametree.Tree[boundname.Bound]]()
	nameCache := newTestNameCache()

	var failureCount atomic.Int64
	sink := func(key string, value any) {
		if key == trace.KeyFailure {
			failureCount.Add(1)
		}
	}
	tracer := trace.New(path.Parse("/s/foo"), dtab.Empty, dtab.Empty, sink)
	dyn := NewDynNameFactory[string, string](path.Parse("/s/foo"), names, nameCache, tracer, func(boundname.Bound) {})

	const n = 3
	type result struct{ err error }
	resCh := make(chan result, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := dyn.Apply(context.Background(), "conn")
			resCh <- result{err}
		}()
	}
	time.Sleep(20 * time.Millisecond)

	names.Update(activity.Failed[nametree.Tree[boundname.Bound]](errors.New("boom")))

	for i := 0; i < n; i++ {
		select {
		case r := <-resCh:
			if r.err == nil {
				t.Fatal("expected an error for a failed resolution")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for queued Apply to drain")
		}
	}

	if got := failureCount.Load(); got != n {
		t.Fatalf("tracer recorded %d failures, want %d", got, n)
	}
}

func TestDynNameFactoryCloseFailsQueuedRequests(t *testing.T) {
	names := activity.New[nametree.Tree[boundname.Bound]]()
	nameCache := newTestNameCache()
	dyn := NewDynNameFactory[string, string](path.Parse("/s/foo"), names, nameCache, nil, func(boundname.Bound) {})

	type result struct{ err error }
	resCh := make(chan result, 1)
	go func() {
		_, err := dyn.Apply(context.Background(), "conn")
		resCh <- result{err}
	}()
	time.Sleep(20 * time.Millisecond)

	if err := dyn.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	select {
	case r := <-resCh:
		if r.err != svcfactory.ErrServiceClosed {
			t.Fatalf("err = %v, want ErrServiceClosed", r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for queued Apply to fail after Close")
	}

	if _, err := dyn.Apply(context.Background(), "conn"); err != svcfactory.ErrServiceClosed {
		t.Fatalf("Apply after Close = %v, want ErrServiceClosed", err)
	}
}
