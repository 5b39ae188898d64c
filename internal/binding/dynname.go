// Package binding implements the top of the naming stack: DynNameFactory
// bridges a reactively-resolving Name to Apply calls, and BindingFactory
// composes DTab resolution, Namer dispatch, and the two-level
// ServiceFactoryCache into the single entry point callers use. See
// SPEC_FULL.md §5.2/§5.4.
package binding

import (
	"context"
	"fmt"
	"sync"

	"github.com/wilyrpc/wily/internal/activity"
	"github.com/wilyrpc/wily/internal/boundname"
	"github.com/wilyrpc/wily/internal/cache"
	"github.com/wilyrpc/wily/internal/nametree"
	"github.com/wilyrpc/wily/internal/path"
	"github.com/wilyrpc/wily/internal/svcfactory"
	"github.com/wilyrpc/wily/internal/trace"
)

// namingException wraps a naming-resolution failure with enough context
// to log distinctly from a downstream factory-build failure. It is
// strictly internal: Apply always unwraps it before returning, so it
// never appears in a caller's error chain.
type namingException struct {
	cause error
}

func (e *namingException) Error() string { return fmt.Sprintf("wily: naming failed: %v", e.cause) }
func (e *namingException) Unwrap() error { return e.cause }

// dynState is DynNameFactory's internal state machine.
type dynState int

const (
	dynPending dynState = iota
	dynNamed
	dynFailed
	dynClosed
)

// pendingRequest is one Apply call queued while resolution is still
// Pending.
type pendingRequest[Req, Rep any] struct {
	ctx    context.Context
	conn   svcfactory.Conn
	result chan applyResult[Req, Rep]
}

type applyResult[Req, Rep any] struct {
	svc svcfactory.Service[Req, Rep]
	err error
}

// DynNameFactory is a ServiceFactory that defers Apply until its bound
// name has resolved, queueing callers in FIFO order and draining the
// queue by delegating each to a fresh Apply once resolution lands.
type DynNameFactory[Req, Rep any] struct {
	mu    sync.Mutex
	state dynState
	named boundname.Bound
	err   error
	queue []*pendingRequest[Req, Rep]

	nameCache     *cache.FactoryCache[string, Req, Rep]
	tracer        *trace.NameTracer
	sub           activity.Closable
	registerBound func(boundname.Bound)

	pathShow string
}

// NewDynNameFactory subscribes to names for its lifetime, draining the
// pending queue on every transition out of Pending and forwarding every
// subsequent Apply straight through to nameCache, keyed by the resolved
// Bound's identity.
func NewDynNameFactory[Req, Rep any](
	p path.Path,
	names *activity.Activity[nametree.Tree[boundname.Bound]],
	nameCache *cache.FactoryCache[string, Req, Rep],
	tracer *trace.NameTracer,
	registerBound func(boundname.Bound),
) *DynNameFactory[Req, Rep] {
	d := &DynNameFactory[Req, Rep]{
		state:         dynPending,
		nameCache:     nameCache,
		tracer:        tracer,
		registerBound: registerBound,
		pathShow:      p.Show(),
	}
	d.sub = names.Respond(func(s activity.State[nametree.Tree[boundname.Bound]]) {
		d.onTransition(s)
	})
	return d
}

func (d *DynNameFactory[Req, Rep]) onTransition(s activity.State[nametree.Tree[boundname.Bound]]) {
	if s.IsPending() {
		return
	}
	if tree, ok := s.IsOk(); ok {
		set, evalOK := tree.Eval()
		if !evalOK || len(set) == 0 {
			d.settle(dynFailed, boundname.Bound{}, &namingException{cause: svcfactory.NewNoBrokersAvailable(d.pathShow)})
			return
		}
		d.settle(dynNamed, boundname.All(set), nil)
		return
	}
	if cause, failed := s.IsFailed(); failed {
		d.settle(dynFailed, boundname.Bound{}, &namingException{cause: cause})
		return
	}
}

// settle transitions out of Pending exactly once per resolution event,
// draining whatever queued requests exist at the moment of transition.
func (d *DynNameFactory[Req, Rep]) settle(state dynState, n boundname.Bound, err error) {
	d.mu.Lock()
	if d.state == dynClosed {
		d.mu.Unlock()
		return
	}
	d.state = state
	d.named = n
	d.err = err
	queue := d.queue
	d.queue = nil
	d.mu.Unlock()

	if len(queue) == 0 {
		return
	}
	go func() {
		for _, req := range queue {
			d.drain(req)
		}
	}()
}

// drain completes one queued request by delegating it to a fresh Apply
// against the state current at drain time.
func (d *DynNameFactory[Req, Rep]) drain(req *pendingRequest[Req, Rep]) {
	svc, err := d.Apply(req.ctx, req.conn)
	req.result <- applyResult[Req, Rep]{svc: svc, err: err}
}

func (d *DynNameFactory[Req, Rep]) applyNamed(ctx context.Context, n boundname.Bound, conn svcfactory.Conn) (svcfactory.Service[Req, Rep], error) {
	if d.registerBound != nil {
		d.registerBound(n)
	}
	svc, err := d.nameCache.Apply(ctx, n.ID.String(), conn)
	if err != nil {
		d.tracer.RecordFailure(err)
		return nil, err
	}
	d.tracer.RecordSuccess(n)
	return svc, nil
}

// Apply resolves (or waits for resolution of) the bound name and applies
// conn through the underlying ServiceFactoryCache. A caller whose context
// is cancelled while queued is removed from the queue and fails with
// CancelledConnection rather than leaking a goroutine waiting forever.
func (d *DynNameFactory[Req, Rep]) Apply(ctx context.Context, conn svcfactory.Conn) (svcfactory.Service[Req, Rep], error) {
	d.mu.Lock()
	switch d.state {
	case dynClosed:
		d.mu.Unlock()
		return nil, svcfactory.ErrServiceClosed
	case dynNamed:
		n := d.named
		d.mu.Unlock()
		return d.applyNamed(ctx, n, conn)
	case dynFailed:
		err := unwrapNaming(d.err)
		d.mu.Unlock()
		d.tracer.RecordFailure(err)
		return nil, err
	}

	req := &pendingRequest[Req, Rep]{ctx: ctx, conn: conn, result: make(chan applyResult[Req, Rep], 1)}
	d.queue = append(d.queue, req)
	d.mu.Unlock()

	select {
	case res := <-req.result:
		return res.svc, res.err
	case <-ctx.Done():
		d.removeFromQueue(req)
		return nil, &svcfactory.CancelledConnection{Cause: ctx.Err()}
	}
}

func (d *DynNameFactory[Req, Rep]) removeFromQueue(target *pendingRequest[Req, Rep]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, r := range d.queue {
		if r == target {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			break
		}
	}
}

// Close is terminal: it stops watching for future resolutions and fails
// every still-queued request with ErrServiceClosed. It does not close
// nameCache, which is shared across every DynNameFactory bound to the
// same BindingFactory.
func (d *DynNameFactory[Req, Rep]) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.state == dynClosed {
		d.mu.Unlock()
		return nil
	}
	d.state = dynClosed
	queue := d.queue
	d.queue = nil
	d.mu.Unlock()

	if d.sub != nil {
		d.sub.Close()
	}
	for _, req := range queue {
		req.result <- applyResult[Req, Rep]{err: svcfactory.ErrServiceClosed}
	}
	return nil
}

// IsAvailable reports whether the factory is in a state that can
// currently serve a request.
func (d *DynNameFactory[Req, Rep]) IsAvailable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case dynClosed, dynFailed:
		return false
	case dynNamed:
		return d.nameCache.IsAvailable()
	default:
		return true
	}
}

func unwrapNaming(err error) error {
	var ne *namingException
	if ok := asNamingException(err, &ne); ok {
		return ne.cause
	}
	return err
}

func asNamingException(err error, target **namingException) bool {
	for err != nil {
		if ne, ok := err.(*namingException); ok {
			*target = ne
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
