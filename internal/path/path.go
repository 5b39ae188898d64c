// Package path provides the hierarchical identifier used to name logical
// services ("/s/svc/foo"), the way a DTab rule or a Namer consumes it.
package path

import "strings"

// Path is an immutable sequence of path components identifying a logical
// service. The zero value is the empty path ("/").
type Path struct {
	components []string
}

// Empty is the root path with no components.
var Empty = Path{}

// Parse splits a slash-separated string into a Path. Leading/trailing
// slashes and empty segments are ignored, so "/s/svc/foo" and
// "s/svc/foo/" parse identically.
func Parse(s string) Path {
	parts := strings.Split(s, "/")
	components := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		components = append(components, p)
	}
	return New(components...)
}

// New builds a Path from individual components, defensively copying the
// input so later mutation by the caller cannot corrupt the Path.
func New(components ...string) Path {
	if len(components) == 0 {
		return Empty
	}
	cp := make([]string, len(components))
	copy(cp, components)
	return Path{components: cp}
}

// Components returns a defensive copy of the path's components.
func (p Path) Components() []string {
	cp := make([]string, len(p.components))
	copy(cp, p.components)
	return cp
}

// Len returns the number of components.
func (p Path) Len() int {
	return len(p.components)
}

// IsEmpty reports whether the path has no components.
func (p Path) IsEmpty() bool {
	return len(p.components) == 0
}

// Show renders the path in its canonical "/a/b/c" display form. Empty
// renders as "/".
func (p Path) Show() string {
	if p.IsEmpty() {
		return "/"
	}
	return "/" + strings.Join(p.components, "/")
}

// String implements fmt.Stringer.
func (p Path) String() string {
	return p.Show()
}

// Equal reports structural equality between two paths.
func (p Path) Equal(other Path) bool {
	if len(p.components) != len(other.components) {
		return false
	}
	for i, c := range p.components {
		if other.components[i] != c {
			return false
		}
	}
	return true
}

// key is the comparable form of Path used as a Go map key (Path itself
// holds a slice and is not comparable with ==).
type key string

// Key returns a comparable representation suitable for use as a map key,
// e.g. inside an xsync.Map[path.Key, ...].
func (p Path) Key() Key {
	return Key(strings.Join(p.components, "/\x00/"))
}

// Key is the comparable map-key form of a Path.
type Key string

// HasPrefix reports whether p begins with the components of prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.components) > len(p.components) {
		return false
	}
	for i, c := range prefix.components {
		if p.components[i] != c {
			return false
		}
	}
	return true
}

// StripPrefix removes prefix from the front of p, returning the remainder
// and true if p has that prefix; otherwise returns p unchanged and false.
func (p Path) StripPrefix(prefix Path) (Path, bool) {
	if !p.HasPrefix(prefix) {
		return p, false
	}
	rest := p.components[len(prefix.components):]
	return New(rest...), true
}

// Append returns a new Path with extra components appended.
func (p Path) Append(extra ...string) Path {
	combined := make([]string, 0, len(p.components)+len(extra))
	combined = append(combined, p.components...)
	combined = append(combined, extra...)
	return New(combined...)
}
