package binding

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/wilyrpc/wily/internal/activity"
	"github.com/wilyrpc/wily/internal/boundname"
	"github.com/wilyrpc/wily/internal/cache"
	"github.com/wilyrpc/wily/internal/dtab"
	"github.com/wilyrpc/wily/internal/dtabkey"
	"github.com/wilyrpc/wily/internal/namer"
	"github.com/wilyrpc/wily/internal/nametree"
	"github.com/wilyrpc/wily/internal/path"
	"github.com/wilyrpc/wily/internal/svcfactory"
	"github.com/wilyrpc/wily/internal/trace"
)

// dtabParams is the (base, local) pair a dtab-cache miss needs to build a
// DynNameFactory; stashed by Apply just ahead of the cache lookup since
// cache.FactoryCache's builder only receives the lookup key.
type dtabParams struct {
	base  dtab.Dtab
	local dtab.Dtab
}

// NewEndpointFactory builds the terminal ServiceFactory for one resolved
// Bound, normally wrapping a transport/connection-pool collaborator
// around the Bound's reactive Addr.
type NewEndpointFactory[Req, Rep any] func(bound boundname.Bound) (svcfactory.ServiceFactory[Req, Rep], error)

// BindingFactory is the entry point for one logical path: it composes the
// ambient DTab, delegates to resolver for anything the DTab didn't
// resolve away, and caches both the per-DTab DynNameFactory and the
// per-Bound endpoint factory.
type BindingFactory[Req, Rep any] struct {
	path     path.Path
	resolver namer.Namer
	sink     trace.Sink

	dtabCache *cache.FactoryCache[dtabkey.Key, Req, Rep]
	nameCache *cache.FactoryCache[string, Req, Rep]

	pendingDtabs  *xsync.Map[dtabkey.Key, dtabParams]
	pendingBounds *xsync.Map[string, boundname.Bound]
}

// New constructs a BindingFactory for p. resolver is the actual naming
// backend (DNS, service registry, etc. — an external collaborator);
// newEndpoint builds the terminal ServiceFactory once a Bound has been
// resolved.
func New[Req, Rep any](
	p path.Path,
	resolver namer.Namer,
	newEndpoint NewEndpointFactory[Req, Rep],
	sink trace.Sink,
) *BindingFactory[Req, Rep] {
	b := &BindingFactory[Req, Rep]{
		path:          p,
		resolver:      resolver,
		sink:          sink,
		pendingDtabs:  xsync.NewMap[dtabkey.Key, dtabParams](),
		pendingBounds: xsync.NewMap[string, boundname.Bound](),
	}
	b.nameCache = cache.New[string, Req, Rep](cache.DefaultNameCacheCapacity, b.buildEndpointFactory(newEndpoint), "namecache")
	b.dtabCache = cache.New[dtabkey.Key, Req, Rep](cache.DefaultDtabCacheCapacity, b.buildDynNameFactory, "dtabcache")
	b.nameCache.Start()
	b.dtabCache.Start()
	return b
}

// buildDynNameFactory is the DTab cache's builder: it rewrites this
// BindingFactory's path through (base++local), binds the rewritten tree
// with resolver, falls back to namer.Global when that binding is negative
// or failed, and wraps the result in a fresh DynNameFactory (spec.md §4.4).
func (b *BindingFactory[Req, Rep]) buildDynNameFactory(key dtabkey.Key) (svcfactory.ServiceFactory[Req, Rep], error) {
	params, ok := b.pendingDtabs.LoadAndDelete(key)
	if !ok {
		return nil, fmt.Errorf("wily: no pending dtab params for key %s", key.Hex())
	}

	composed := dtab.Compose(params.base, params.local)
	rewritten := composed.Resolve(b.path)

	rewriteNamer := namer.Func(func(ctx context.Context, _ nametree.Tree[path.Path]) *activity.Activity[nametree.Tree[boundname.Bound]] {
		return b.resolver.Bind(ctx, rewritten)
	})
	composedNamer := namer.OrElse(rewriteNamer, namer.Global())

	act := composedNamer.Bind(context.Background(), nametree.Leaf(b.path))
	tracer := trace.New(b.path, params.base, params.local, b.sink)

	registerBound := func(bound boundname.Bound) {
		b.pendingBounds.Store(bound.ID.String(), bound)
	}
	return NewDynNameFactory[Req, Rep](b.path, act, b.nameCache, tracer, registerBound), nil
}

// buildEndpointFactory returns the name cache's builder: the downstream
// terminal factory for one resolved Bound, keyed by its identity token.
func (b *BindingFactory[Req, Rep]) buildEndpointFactory(newEndpoint NewEndpointFactory[Req, Rep]) svcfactory.Builder[string, Req, Rep] {
	return func(id string) (svcfactory.ServiceFactory[Req, Rep], error) {
		bound, ok := b.pendingBounds.LoadAndDelete(id)
		if !ok {
			return nil, fmt.Errorf("wily: no registered bound for id %s", id)
		}
		return newEndpoint(bound)
	}
}

// Apply resolves this path under the ambient (process base + request
// local) DTab and applies conn through the terminal endpoint factory.
// When the local DTab is non-empty, a NoBrokersAvailable failure is
// enriched with the local DTab's rendered form for diagnostics, matching
// spec.md §4.4/§7 exactly (no other observable behavior changes).
func (b *BindingFactory[Req, Rep]) Apply(ctx context.Context, conn svcfactory.Conn) (svcfactory.Service[Req, Rep], error) {
	local := dtab.Local(ctx)
	base := dtab.Base()
	key := dtabkey.From(base.Show(), local.Show())

	b.pendingDtabs.Store(key, dtabParams{base: base, local: local})
	defer b.pendingDtabs.Delete(key)

	svc, err := b.dtabCache.Apply(ctx, key, conn)
	if err != nil {
		return nil, enrichIfLocalDtab(err, local)
	}
	if local.IsEmpty() {
		return svc, nil
	}
	return &localDtabService[Req, Rep]{inner: svc, local: local}, nil
}

// enrichIfLocalDtab attaches local-DTab context to a NoBrokersAvailable
// failure iff local is non-empty; every other error passes through
// unchanged.
func enrichIfLocalDtab(err error, local dtab.Dtab) error {
	if local.IsEmpty() {
		return err
	}
	var nb *svcfactory.NoBrokersAvailable
	if asNoBrokers(err, &nb) {
		return nb.WithLocalDtab(local.Show())
	}
	return err
}

func asNoBrokers(err error, target **svcfactory.NoBrokersAvailable) bool {
	for err != nil {
		if nb, ok := err.(*svcfactory.NoBrokersAvailable); ok {
			*target = nb
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

// localDtabService re-applies the same local-DTab enrichment to any
// NoBrokersAvailable a downstream request surfaces later, so the rescue
// is consistent for the lifetime of the Service, not just at Apply time.
type localDtabService[Req, Rep any] struct {
	inner svcfactory.Service[Req, Rep]
	local dtab.Dtab
}

func (s *localDtabService[Req, Rep]) Serve(ctx context.Context, req Req) (Rep, error) {
	rep, err := s.inner.Serve(ctx, req)
	if err != nil {
		err = enrichIfLocalDtab(err, s.local)
	}
	return rep, err
}

func (s *localDtabService[Req, Rep]) Close(ctx context.Context) error { return s.inner.Close(ctx) }
func (s *localDtabService[Req, Rep]) IsAvailable() bool               { return s.inner.IsAvailable() }

// Close closes the DTab cache before the name cache: DTab-cache factories
// (DynNameFactory) hold references into the name cache, so closing in
// this order avoids the name cache refusing in-flight drains.
func (b *BindingFactory[Req, Rep]) Close(ctx context.Context) error {
	b.dtabCache.Stop()
	b.nameCache.Stop()
	dtabErr := b.dtabCache.Close(ctx)
	nameErr := b.nameCache.Close(ctx)
	if dtabErr != nil {
		return dtabErr
	}
	return nameErr
}

// IsAvailable delegates to the DTab cache, which is the caller-facing
// level of this BindingFactory.
func (b *BindingFactory[Req, Rep]) IsAvailable() bool {
	return b.dtabCache.IsAvailable()
}

// Stats exposes both caches' counters for cache.StatsReporter to log.
func (b *BindingFactory[Req, Rep]) Stats() (dtabCache, nameCache cache.Stats) {
	return b.dtabCache.Stats(), b.nameCache.Stats()
}
