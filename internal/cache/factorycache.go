// Package cache implements ServiceFactoryCache: a bounded, reference
// counted cache from a key K to a ServiceFactory, with idle LRU eviction
// gated on zero outstanding services. See SPEC_FULL.md §5.1.
package cache

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/wilyrpc/wily/internal/svcfactory"
)

// sweepMinInterval and sweepJitterRange set the idle-sweep cadence: each
// pass waits minInterval + random([0, jitterRange)), so many caches'
// sweeps don't fire in lockstep.
const (
	sweepMinInterval = 13 * time.Second
	sweepJitterRange = 4 * time.Second
)

// DefaultCapacity values per spec.md §4.1.
const (
	DefaultNameCacheCapacity = 8
	DefaultDtabCacheCapacity = 4
)

// DefaultCloseDeadline bounds how long an evicted/closed factory's Close
// is allowed to run before FactoryCache stops waiting on it.
const DefaultCloseDeadline = 10 * time.Second

// DefaultIdleTimeout bounds how long a quiesced entry may sit below
// capacity before the sweep goroutine reclaims it anyway; this only
// matters once the idle sweep is started via Start.
const DefaultIdleTimeout = 10 * time.Minute

// entry is one cache slot: the built factory, its outstanding refcount,
// and its last-touched timestamp for LRU eviction.
type entry[Req, Rep any] struct {
	mu          sync.Mutex
	factory     svcfactory.ServiceFactory[Req, Rep]
	outstanding int
	lastUsed    time.Time
	closed      bool
}

// refcountedService wraps a Service produced through the cache so that
// Close decrements the owning entry's refcount exactly once.
type refcountedService[Req, Rep any] struct {
	inner   svcfactory.Service[Req, Rep]
	e       *entry[Req, Rep]
	once    sync.Once
	release func()
}

func (s *refcountedService[Req, Rep]) Serve(ctx context.Context, req Req) (Rep, error) {
	return s.inner.Serve(ctx, req)
}

func (s *refcountedService[Req, Rep]) IsAvailable() bool {
	return s.inner.IsAvailable()
}

func (s *refcountedService[Req, Rep]) Close(ctx context.Context) error {
	err := s.inner.Close(ctx)
	s.once.Do(s.release)
	return err
}

// Stats mirrors the counters named in spec.md §4.1.
type Stats struct {
	Size      int
	Misses    int64
	Evictions int64
	Idle      int
}

// FactoryCache is a bounded cache mapping K to a refcounted ServiceFactory.
type FactoryCache[K comparable, Req, Rep any] struct {
	capacity      int
	closeDeadline time.Duration
	idleTimeout   time.Duration
	builder       svcfactory.Builder[K, Req, Rep]
	logTag        string

	mu      sync.Mutex // guards lru and closed; map itself is xsync
	entries *xsync.Map[K, *entry[Req, Rep]]
	lru     []K // most-recently-used at the end
	closed  bool

	misses    atomic.Int64
	evictions atomic.Int64

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// New creates a FactoryCache with the given capacity and builder. logTag
// namespaces this cache's log lines in brackets (binding.New uses
// "namecache" and "dtabcache").
func New[K comparable, Req, Rep any](capacity int, builder svcfactory.Builder[K, Req, Rep], logTag string) *FactoryCache[K, Req, Rep] {
	if capacity <= 0 {
		capacity = 1
	}
	return &FactoryCache[K, Req, Rep]{
		capacity:      capacity,
		closeDeadline: DefaultCloseDeadline,
		idleTimeout:   DefaultIdleTimeout,
		builder:       builder,
		logTag:        logTag,
		entries:       xsync.NewMap[K, *entry[Req, Rep]](),
		stopSweep:     make(chan struct{}),
	}
}

// Start launches the idle-eviction sweep goroutine: a jittered periodic
// pass that reclaims quiesced entries which have sat idle past
// idleTimeout, even while the cache is at or under capacity
// (complementing the synchronous over-capacity eviction that runs inline
// on every publish/release).
func (c *FactoryCache[K, Req, Rep]) Start() {
	go c.sweepLoop()
}

// Stop halts the idle-eviction sweep goroutine. Safe to call more than
// once; safe to call even if Start was never called.
func (c *FactoryCache[K, Req, Rep]) Stop() {
	c.sweepOnce.Do(func() { close(c.stopSweep) })
}

// sweepLoop runs sweepIdle at a jittered interval until stopSweep is
// closed.
func (c *FactoryCache[K, Req, Rep]) sweepLoop() {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C // drain initial fire

	for {
		interval := sweepMinInterval + time.Duration(rand.Int64N(int64(sweepJitterRange)))
		timer.Reset(interval)
		select {
		case <-c.stopSweep:
			return
		case <-timer.C:
		}
		c.sweepIdle()
	}
}

// sweepIdle evicts quiesced entries that have exceeded idleTimeout,
// independent of whether the cache is over capacity.
func (c *FactoryCache[K, Req, Rep]) sweepIdle() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	keys := append([]K(nil), c.lru...)
	c.mu.Unlock()

	now := time.Now()
	for _, k := range keys {
		e, ok := c.entries.Load(k)
		if !ok {
			continue
		}
		e.mu.Lock()
		expired := e.outstanding == 0 && !e.closed && now.Sub(e.lastUsed) > c.idleTimeout
		e.mu.Unlock()
		if !expired {
			continue
		}

		c.mu.Lock()
		for i, lk := range c.lru {
			if lk == k {
				c.lru = append(c.lru[:i], c.lru[i+1:]...)
				break
			}
		}
		c.mu.Unlock()

		c.evictions.Add(1)
		c.closeEntryAsync(k)
	}
}

// Apply looks up key's factory (building it on first miss) and applies
// conn through it, returning a refcount-pinned Service.
func (c *FactoryCache[K, Req, Rep]) Apply(ctx context.Context, key K, conn svcfactory.Conn) (svcfactory.Service[Req, Rep], error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, svcfactory.ErrServiceClosed
	}
	c.mu.Unlock()

	e, built, err := c.getOrBuild(key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, svcfactory.ErrServiceClosed
	}
	e.outstanding++
	e.lastUsed = time.Now()
	factory := e.factory
	e.mu.Unlock()

	// The entry is pinned before publish runs the capacity check, so a
	// freshly built entry is never its own eviction victim.
	if built {
		c.misses.Add(1)
		c.publish(key, e)
	}
	c.touch(key)

	svc, err := factory.Apply(ctx, conn)
	if err != nil {
		c.release(key, e)
		return nil, err
	}

	released := false
	return &refcountedService[Req, Rep]{
		inner: svc,
		e:     e,
		release: func() {
			if released {
				return
			}
			released = true
			c.release(key, e)
		},
	}, nil
}

// getOrBuild returns key's entry, invoking the builder at most once per
// key: the candidate is computed inside entries.LoadOrCompute, which runs
// the compute func under the map bucket's lock, the same guarantee
// internal/routing/router.go's ensurePlatformState gets from the identical
// xsync.Map.LoadOrCompute call. A builder error cancels the compute (the
// key stays unset) rather than caching a failed entry.
func (c *FactoryCache[K, Req, Rep]) getOrBuild(key K) (*entry[Req, Rep], bool, error) {
	var buildErr error
	built := false
	e, _ := c.entries.LoadOrCompute(key, func() (*entry[Req, Rep], bool) {
		factory, err := c.builder(key)
		if err != nil {
			buildErr = err
			return nil, true
		}
		built = true
		return &entry[Req, Rep]{factory: factory, lastUsed: time.Now()}, false
	})
	if buildErr != nil {
		return nil, false, buildErr
	}
	return e, built, nil
}

// publish runs post-insertion bookkeeping: LRU tracking and capacity
// enforcement. Must be called after a successful first build.
func (c *FactoryCache[K, Req, Rep]) publish(key K, e *entry[Req, Rep]) {
	c.touch(key)
	c.evictIfOverCapacity()
}

// touch moves key to the most-recently-used position.
func (c *FactoryCache[K, Req, Rep]) touch(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, k := range c.lru {
		if k == key {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
	c.lru = append(c.lru, key)
}

// evictIfOverCapacity evicts the least-recently-used entries with zero
// outstanding services until the cache is back at capacity, or until no
// further entry qualifies (temporary overshoot permitted per spec.md
// §4.1: "if none qualifies, permit temporary overshoot and evict as soon
// as an entry quiesces").
func (c *FactoryCache[K, Req, Rep]) evictIfOverCapacity() {
	for {
		c.mu.Lock()
		if len(c.lru) <= c.capacity {
			c.mu.Unlock()
			return
		}
		victimIdx := -1
		var victimKey K
		for i, k := range c.lru {
			if e, ok := c.entries.Load(k); ok {
				e.mu.Lock()
				quiesced := e.outstanding == 0 && !e.closed
				e.mu.Unlock()
				if quiesced {
					victimIdx = i
					victimKey = k
					break
				}
			}
		}
		if victimIdx == -1 {
			c.mu.Unlock()
			return
		}
		c.lru = append(c.lru[:victimIdx], c.lru[victimIdx+1:]...)
		c.mu.Unlock()

		c.evictions.Add(1)
		c.closeEntryAsync(victimKey)
	}
}

// closeEntryAsync removes key from the map and closes its factory off the
// calling goroutine.
func (c *FactoryCache[K, Req, Rep]) closeEntryAsync(key K) {
	e, ok := c.entries.LoadAndDelete(key)
	if !ok {
		return
	}
	e.mu.Lock()
	e.closed = true
	factory := e.factory
	e.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.closeDeadline)
		defer cancel()
		if err := factory.Close(ctx); err != nil {
			log.Printf("[%s] close error: %v", c.logTag, err)
		}
	}()
}

// release decrements key's refcount. If the entry quiesces while the
// cache is over capacity, it becomes eligible for the next sweep/eviction
// attempt.
func (c *FactoryCache[K, Req, Rep]) release(key K, e *entry[Req, Rep]) {
	e.mu.Lock()
	if e.outstanding > 0 {
		e.outstanding--
	}
	quiesced := e.outstanding == 0
	e.mu.Unlock()

	if quiesced {
		c.evictIfOverCapacity()
	}
}

// idle returns the count of entries with zero outstanding services.
func (c *FactoryCache[K, Req, Rep]) idle() int {
	idle := 0
	c.entries.Range(func(_ K, e *entry[Req, Rep]) bool {
		e.mu.Lock()
		if e.outstanding == 0 {
			idle++
		}
		e.mu.Unlock()
		return true
	})
	return idle
}

// Stats returns a point-in-time snapshot of cache counters.
func (c *FactoryCache[K, Req, Rep]) Stats() Stats {
	return Stats{
		Size:      c.entries.Size(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Idle:      c.idle(),
	}
}

// IsAvailable reports true if any cached factory is available, or if the
// cache is empty (lookups can still succeed via a fresh build).
func (c *FactoryCache[K, Req, Rep]) IsAvailable() bool {
	if c.entries.Size() == 0 {
		return true
	}
	available := false
	c.entries.Range(func(_ K, e *entry[Req, Rep]) bool {
		e.mu.Lock()
		ok := !e.closed && e.factory.IsAvailable()
		e.mu.Unlock()
		if ok {
			available = true
			return false
		}
		return true
	})
	return available
}

// Close closes every cached entry and refuses further misses.
func (c *FactoryCache[K, Req, Rep]) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	keys := append([]K(nil), c.lru...)
	c.lru = nil
	c.mu.Unlock()

	var firstErr error
	var wg sync.WaitGroup
	var errMu sync.Mutex
	for _, k := range keys {
		e, ok := c.entries.LoadAndDelete(k)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(e *entry[Req, Rep]) {
			defer wg.Done()
			e.mu.Lock()
			e.closed = true
			factory := e.factory
			e.mu.Unlock()
			if err := factory.Close(ctx); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		}(e)
	}
	wg.Wait()
	return firstErr
}
