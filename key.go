// Package octrie implements a cache-conscious, in-memory associative
// container keyed by arbitrary byte strings: an octet-stride radix tree
// whose internal nodes use a size-classed, bit-packed layout to minimize
// cache-line traffic during lookup.
package octrie

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key is an opaque byte-string key. Byte-wise comparison of two Keys
// corresponds to their natural octet order in the tree, matching the
// tree's own traversal order — no separate sort step is needed to get
// ascending iteration.
type Key []byte

// FromBytes returns a copy of b as a Key. A nil b yields an empty
// (zero-length, non-nil) Key, so later length checks never need a nil
// case of their own.
func FromBytes(b []byte) Key {
	if b == nil {
		return Key{}
	}
	kb := make([]byte, len(b))
	copy(kb, b)
	return Key(kb)
}

// FromString returns a Key built from s after normalizing it to Unicode
// NFC, so that visually identical strings built from different
// combining-sequence choices compare equal and land at the same trie
// position.
func FromString(s string) Key {
	return FromBytes([]byte(norm.NFC.String(s)))
}

// Bytes returns a copy of the Key's contents.
func (k Key) Bytes() []byte {
	if k == nil {
		return nil
	}
	b := make([]byte, len(k))
	copy(b, k)
	return b
}

// Clone returns an independent copy of k.
func (k Key) Clone() Key {
	if k == nil {
		return nil
	}
	return FromBytes(k)
}

// Equal reports whether k and other hold identical bytes.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// LessThan reports whether k sorts before other in byte-lexicographic
// order, the same order the tree's iterator yields keys in.
func (k Key) LessThan(other Key) bool {
	for i := 0; i < len(k) && i < len(other); i++ {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return len(k) < len(other)
}

// String renders k as comma-separated uppercase hex byte tuples, e.g.
// "[01,AB,00]", useful for debug output and sanity-checker messages.
func (k Key) String() string {
	if len(k) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	const hex = "0123456789ABCDEF"
	for i, b := range k {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte(hex[b>>4])
		sb.WriteByte(hex[b&0x0F])
	}
	sb.WriteByte(']')
	return sb.String()
}

// IsEmpty reports whether k has zero length.
func (k Key) IsEmpty() bool { return len(k) == 0 }

// longestCommonPrefix returns the number of leading bytes a and b share.
func longestCommonPrefix(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
