package trace

import (
	"fmt"

	"github.com/maypok86/otter"

	"github.com/wilyrpc/wily/internal/path"
)

// renderCacheCapacity bounds the memoized Path display strings kept
// around; a DynNameFactory typically re-renders the same handful of
// paths on every request, so a small cache avoids repeated allocation on
// the hot path (the same idiom as internal/node/latency.go's bounded
// otter cache, applied to string rendering instead of latency stats).
const renderCacheCapacity = 256

// renderCache memoizes Path.Show() by its cheap map-key form (path.Key,
// a join that costs the same as Show() itself but lets a repeat lookup
// skip the Show() call entirely on hit). Dtab has no equivalently cheap
// pre-render key — Dtab.Show() evaluates each rule's Tree, so there is no
// way to check "have we rendered this one" without already paying the
// cost it would save — so DTab display strings are rendered directly by
// the caller instead of routed through a cache that couldn't avoid the
// work it claims to save.
type renderCache struct {
	paths otter.Cache[path.Key, string]
}

func newRenderCache() *renderCache {
	paths, err := otter.MustBuilder[path.Key, string](renderCacheCapacity).
		Cost(func(_ path.Key, _ string) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("trace: failed to create path render cache: " + err.Error())
	}
	return &renderCache{paths: paths}
}

// globalRenderCache is shared across every NameTracer in the process; it
// holds only display strings (no secrets, no per-request state), so
// sharing it is safe and avoids a cache-per-tracer allocation.
var globalRenderCache = newRenderCache()

func (c *renderCache) render(p path.Path) string {
	key := p.Key()
	if s, ok := c.paths.Get(key); ok {
		return s
	}
	s := p.Show()
	c.paths.Set(key, s)
	return s
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
