// Package dtabkey derives a comparable cache key for a (base, local) DTab
// pair, the way internal/node/hash.go derives a comparable identity for a
// node's raw options: canonicalize to a string, then hash with xxh3.
package dtabkey

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// Key is a 128-bit content hash of a composed (base, local) DTab pair.
type Key [16]byte

// Hex returns the lowercase hex encoding of the key.
func (k Key) Hex() string {
	return hex.EncodeToString(k[:])
}

// String implements fmt.Stringer.
func (k Key) String() string { return k.Hex() }

// From derives a Key from the canonical rendered form of base and local
// (their Show() strings, joined by a separator that cannot appear in a
// rendered DTab). Two DTab pairs that render identically collide to the
// same key, matching DTab's structural-equality cache-key semantics from
// spec.md §4.1.
func From(baseShow, localShow string) Key {
	h128 := xxh3.Hash128([]byte(baseShow + "\x00++\x00" + localShow))
	var k Key
	binary.LittleEndian.PutUint64(k[:8], h128.Lo)
	binary.LittleEndian.PutUint64(k[8:], h128.Hi)
	return k
}
