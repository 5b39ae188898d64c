// Package addr defines the Addr value carried by a bound name's reactive
// Var: the resolved (or not-yet-resolved, or failed) set of endpoints.
package addr

// Addr is the state of a bound name's endpoint set.
type Addr struct {
	kind      addrKind
	endpoints []string // opaque endpoint identifiers; transport details are an external collaborator's concern
	err       error
}

type addrKind int

const (
	kindPending addrKind = iota
	kindBound
	kindNeg
	kindFailed
)

// PendingAddr is the initial Addr state before any endpoints are known.
func PendingAddr() Addr { return Addr{kind: kindPending} }

// Bound constructs an Addr holding a concrete, non-empty endpoint set.
func Bound(endpoints ...string) Addr {
	cp := make([]string, len(endpoints))
	copy(cp, endpoints)
	return Addr{kind: kindBound, endpoints: cp}
}

// Neg constructs an Addr explicitly bound to "no endpoints".
func Neg() Addr { return Addr{kind: kindNeg} }

// FailedAddr constructs an Addr in the failed state.
func FailedAddr(err error) Addr { return Addr{kind: kindFailed, err: err} }

// IsPending reports whether the Addr is still resolving.
func (a Addr) IsPending() bool { return a.kind == kindPending }

// Endpoints returns the bound endpoint set, if any.
func (a Addr) Endpoints() ([]string, bool) {
	if a.kind != kindBound {
		return nil, false
	}
	cp := make([]string, len(a.endpoints))
	copy(cp, a.endpoints)
	return cp, true
}

// IsNeg reports whether the Addr is explicitly negative.
func (a Addr) IsNeg() bool { return a.kind == kindNeg }

// Err returns the failure error, if any.
func (a Addr) Err() (error, bool) {
	if a.kind != kindFailed {
		return nil, false
	}
	return a.err, true
}

// Merge combines two Addrs the way a union bound-name aggregates its
// members: Bound+Bound unions endpoints, any Failed dominates (first one
// wins), Pending dominates over Neg/Bound absence only when nothing else
// has resolved yet.
func Merge(a, b Addr) Addr {
	if a.kind == kindFailed {
		return a
	}
	if b.kind == kindFailed {
		return b
	}
	if a.kind == kindPending && b.kind == kindPending {
		return PendingAddr()
	}
	var endpoints []string
	if a.kind == kindBound {
		endpoints = append(endpoints, a.endpoints...)
	}
	if b.kind == kindBound {
		endpoints = append(endpoints, b.endpoints...)
	}
	if len(endpoints) > 0 {
		return Bound(endpoints...)
	}
	if a.kind == kindNeg && b.kind == kindNeg {
		return Neg()
	}
	return PendingAddr()
}
