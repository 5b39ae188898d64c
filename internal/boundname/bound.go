// Package boundname implements Name.Bound: the terminal, resolved form of
// a logical name, carrying an identity token for cache keying/equality and
// a reactive Var tracking its current Addr.
package boundname

import (
	"github.com/google/uuid"

	"github.com/wilyrpc/wily/internal/activity"
	"github.com/wilyrpc/wily/internal/addr"
)

// Bound is a resolved name: an opaque identity token plus a reactive
// endpoint address. Two Bound values are the "same" cache entry iff their
// IDs are equal, regardless of their current Addr.
type Bound struct {
	ID   uuid.UUID
	Addr *activity.Var[addr.Addr]
}

// New mints a fresh Bound with a new identity token, seeded with the
// given initial Addr.
func New(initial addr.Addr) Bound {
	return Bound{
		ID:   uuid.New(),
		Addr: activity.NewVar(initial),
	}
}

// Equal reports identity equality (not Addr equality).
func (b Bound) Equal(other Bound) bool {
	return b.ID == other.ID
}

// All combines multiple Bound members into a single union Bound whose
// identity token is fresh (it represents the union itself, not any one
// member) and whose Addr aggregates the members' addresses. Per spec.md
// §9, the combination is treated as order-independent: the starting Addr
// is whatever members currently report, merged with addr.Merge, and it is
// kept live by subscribing to every member.
func All(members []Bound) Bound {
	if len(members) == 1 {
		return members[0]
	}

	merged := addr.PendingAddr()
	for _, m := range members {
		merged = addr.Merge(merged, m.Addr.Get())
	}
	union := New(merged)

	for _, m := range members {
		m.Addr.Observe(func(a addr.Addr) {
			recomputed := addr.PendingAddr()
			for _, mm := range members {
				recomputed = addr.Merge(recomputed, mm.Addr.Get())
			}
			_ = a // the triggering value is already folded into recomputed via Get()
			union.Addr.Set(recomputed)
		})
	}
	return union
}
