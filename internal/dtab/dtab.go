// Package dtab implements the delegation table: an ordered list of
// prefix⇒NameTree rewrite rules, with ambient base (process-static) and
// local (request-scoped) tables.
package dtab

import (
	"strings"

	"github.com/wilyrpc/wily/internal/nametree"
	"github.com/wilyrpc/wily/internal/path"
)

// Rule is one delegation rule: requests under Prefix rewrite through Tree.
type Rule struct {
	Prefix path.Path
	Tree   nametree.Tree[path.Path]
}

// Dtab is an ordered, immutable list of rewrite rules.
type Dtab struct {
	rules []Rule
}

// Empty is the DTab with no rules.
var Empty = Dtab{}

// New builds a Dtab from rules, defensively copying the slice.
func New(rules ...Rule) Dtab {
	if len(rules) == 0 {
		return Empty
	}
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return Dtab{rules: cp}
}

// Rules returns a defensive copy of the rule list.
func (d Dtab) Rules() []Rule {
	cp := make([]Rule, len(d.rules))
	copy(cp, d.rules)
	return cp
}

// IsEmpty reports whether the table has no rules.
func (d Dtab) IsEmpty() bool {
	return len(d.rules) == 0
}

// Compose concatenates base and local, in that order: base's rules apply
// before local's. Composition is order-significant (spec.md §3).
func Compose(base, local Dtab) Dtab {
	combined := make([]Rule, 0, len(base.rules)+len(local.rules))
	combined = append(combined, base.rules...)
	combined = append(combined, local.rules...)
	return New(combined...)
}

// Show renders the table in "prefix=>tree;prefix=>tree" form, used both
// for tracing annotations and as the DTab-cache key's canonical input
// (dtabkey.From).
func (d Dtab) Show() string {
	if d.IsEmpty() {
		return ""
	}
	parts := make([]string, len(d.rules))
	for i, r := range d.rules {
		parts[i] = r.Prefix.Show() + "=>" + showTree(r.Tree)
	}
	return strings.Join(parts, ";")
}

// String implements fmt.Stringer.
func (d Dtab) String() string { return d.Show() }

// showTree renders a NameTree[Path] for display purposes. Since
// nametree.Tree does not expose its internal shape, rendering is limited
// to evaluating it against the paths it can currently produce; this is
// sufficient for trace annotations (which only need a stable, readable
// label, not a full AST dump).
func showTree(t nametree.Tree[path.Path]) string {
	set, ok := t.Eval()
	if !ok {
		return "~"
	}
	if len(set) == 0 {
		return "!"
	}
	shows := make([]string, len(set))
	for i, p := range set {
		shows[i] = p.Show()
	}
	return strings.Join(shows, "&")
}

// Resolve rewrites a path through the table's rules: the first rule whose
// Prefix is a prefix of p wins, and its Tree is returned as is (the
// components of p after the prefix are not appended to it); unmatched
// paths pass through as a Leaf of themselves.
func (d Dtab) Resolve(p path.Path) nametree.Tree[path.Path] {
	for _, r := range d.rules {
		if rest, ok := p.StripPrefix(r.Prefix); ok {
			_ = rest
			return r.Tree
		}
	}
	return nametree.Leaf(p)
}
