// Package debugalloc provides a test-only allocator decorator that
// deliberately forces the long-pointer path a default arena never
// triggers on its own. It belongs to the test harness, not the core.
package debugalloc

import (
	"github.com/dolthub/maphash"

	"github.com/radix8/octrie/arena"
	"github.com/radix8/octrie/node"
)

// band0 and band1 are two widely separated upper-32-bit region bands.
// A node and a child minted from opposite bands differ in their region
// tag's upper half, which is exactly the condition that activates a
// scan node's pointer-prefix / a mask next-block's long-pointer mode.
const (
	band0 = uint64(0x0000_0001) << 32
	band1 = uint64(0xFFFF_FFFE) << 32
)

// Arena wraps arena.Arena, keeping its pooled node storage untouched
// but overriding region-tag assignment so successive allocations
// alternate between band0 and band1 instead of climbing one strictly
// increasing sequence. github.com/dolthub/maphash seeds the coin flip
// so the band sequence isn't trivially predictable from the allocation
// ordinal alone.
type Arena[V any] struct {
	*arena.Arena[V]
	hasher maphash.Hasher[uint64]
	seq    uint64
}

// New returns a debug arena wrapping a freshly constructed arena.Arena.
func New[V any]() *Arena[V] {
	return &Arena[V]{
		Arena:  arena.New[V](),
		hasher: maphash.NewHasher[uint64](),
	}
}

// NextRegion hands out a region tag whose upper half names one of the
// two bands, chosen by hashing the allocation ordinal rather than
// incrementing it — see package doc.
func (a *Arena[V]) NextRegion() uint64 {
	a.seq++
	band := band0
	if a.hasher.Hash(a.seq)%2 == 1 {
		band = band1
	}
	return band | (a.seq & 0xFFFF_FFFF)
}

var _ node.Allocator[int] = (*Arena[int])(nil)
