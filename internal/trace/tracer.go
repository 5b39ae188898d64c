// Package trace implements NameTracer: a pure side-effect recorder that
// annotates the current trace context with path/dtab/outcome on every
// binding-related request.
package trace

import (
	"github.com/wilyrpc/wily/internal/boundname"
	"github.com/wilyrpc/wily/internal/dtab"
	"github.com/wilyrpc/wily/internal/path"
)

// Annotation keys, fixed per spec.md §4.3.
const (
	KeyPath      = "wily.path"
	KeyDtabBase  = "wily.dtab.base"
	KeyDtabLocal = "wily.dtab.local"
	KeyName      = "wily.name"
	KeyFailure   = "wily.failure"
)

// Sink is the injected tracing callback; the core never owns the tracing
// backend itself.
type Sink func(key string, value any)

// NameTracer records annotations for one (path, base, local) triple,
// shared by every request flowing through the DynNameFactory it is bound
// to.
type NameTracer struct {
	path  path.Path
	base  dtab.Dtab
	local dtab.Dtab
	sink  Sink
	cache *renderCache
}

// New constructs a NameTracer for the given path and ambient DTab pair.
func New(p path.Path, base, local dtab.Dtab, sink Sink) *NameTracer {
	return &NameTracer{path: p, base: base, local: local, sink: sink, cache: globalRenderCache}
}

// RecordSuccess annotates a successful resolution: the three context
// annotations plus "wily.name" set to the bound identity.
func (t *NameTracer) RecordSuccess(b boundname.Bound) {
	if t == nil || t.sink == nil {
		return
	}
	t.recordContext()
	t.sink(KeyName, b.ID.String())
}

// RecordFailure annotates a failed resolution: the three context
// annotations plus "wily.failure" set to the error's kind name.
func (t *NameTracer) RecordFailure(err error) {
	if t == nil || t.sink == nil {
		return
	}
	t.recordContext()
	t.sink(KeyFailure, errorKindName(err))
}

func (t *NameTracer) recordContext() {
	t.sink(KeyPath, t.cache.render(t.path))
	t.sink(KeyDtabBase, t.base.Show())
	t.sink(KeyDtabLocal, t.local.Show())
}

// errorKindName reports a stable, short label for an error's "kind",
// preferring the dynamic type name over the (often request-specific)
// error message.
func errorKindName(err error) string {
	if err == nil {
		return ""
	}
	type kindNamed interface{ KindName() string }
	if k, ok := err.(kindNamed); ok {
		return k.KindName()
	}
	return typeName(err)
}
