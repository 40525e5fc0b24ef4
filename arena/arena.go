// Package arena implements the sub-allocator that produces the
// fixed-size node slots the node package's size classes depend on,
// carved in bulk from backing Go-typed "superblocks" rather than from
// raw byte buffers. A byte-buffer-carving allocator would hide node
// pointers from the garbage collector, so the superblocks are typed
// slices instead; what survives is the contract: per-size-class
// freelists, slot-occupancy bookkeeping, and returning a superblock to
// the backing allocator once every slot in it is free.
package arena

import (
	"github.com/radix8/octrie/node"
)

// SuperblockSlots is how many node slots a freshly grown superblock
// holds per size class: a bigger number means fewer, larger Go
// allocations and more slack before a superblock frees itself back to
// the runtime.
const SuperblockSlots = 64

// Arena is a sub-allocator instance; a tree may bind to any arena.
// The zero value is not usable; construct with New.
type Arena[V any] struct {
	scan16  pool[node.Scan16[V]]
	scan32  pool[node.Scan32[V]]
	scan64  pool[node.Scan64[V]]
	scan128 pool[node.Scan128[V]]
	mask    pool[node.MaskNode[V]]

	regionSeq uint64
}

// New returns a freshly initialized arena with empty pools.
func New[V any]() *Arena[V] {
	return &Arena[V]{
		scan16: newPool(func(s *node.Scan16[V]) {
			*s = node.Scan16[V]{}
			node.ResetScanHeader[V](s, node.KindScan16)
		}),
		scan32: newPool(func(s *node.Scan32[V]) {
			*s = node.Scan32[V]{}
			node.ResetScanHeader[V](s, node.KindScan32)
		}),
		scan64: newPool(func(s *node.Scan64[V]) {
			*s = node.Scan64[V]{}
			node.ResetScanHeader[V](s, node.KindScan64)
		}),
		scan128: newPool(func(s *node.Scan128[V]) {
			*s = node.Scan128[V]{}
			node.ResetScanHeader[V](s, node.KindScan128)
		}),
		mask: newPool(func(m *node.MaskNode[V]) {
			node.InitMask[V](m)
		}),
	}
}

// NextRegion returns a fresh synthetic allocation region tag. The
// default arena hands out strictly increasing tags, which keeps every
// node's "upper half" identical to its allocator's and so never
// activates long-pointer mode on its own. debugalloc.Arena overrides
// this to spread regions across two bands.
func (a *Arena[V]) NextRegion() uint64 {
	a.regionSeq++
	return a.regionSeq
}

// AllocScan returns a zeroed node of the given scan size class.
func (a *Arena[V]) AllocScan(k node.Kind) node.ScanAccessor[V] {
	switch k {
	case node.KindScan16:
		return a.scan16.alloc()
	case node.KindScan32:
		return a.scan32.alloc()
	case node.KindScan64:
		return a.scan64.alloc()
	case node.KindScan128:
		return a.scan128.alloc()
	default:
		panic("arena: AllocScan called with a non-scan kind")
	}
}

// FreeScan releases a scan node back to its size class's pool.
func (a *Arena[V]) FreeScan(s node.ScanAccessor[V]) {
	switch n := s.(type) {
	case *node.Scan16[V]:
		a.scan16.release(n)
	case *node.Scan32[V]:
		a.scan32.release(n)
	case *node.Scan64[V]:
		a.scan64.release(n)
	case *node.Scan128[V]:
		a.scan128.release(n)
	default:
		panic("arena: FreeScan called with an unknown concrete type")
	}
}

// AllocMask returns a zeroed, initialized mask node.
func (a *Arena[V]) AllocMask() *node.MaskNode[V] {
	return a.mask.alloc()
}

// FreeMask releases a mask node back to its pool.
func (a *Arena[V]) FreeMask(m *node.MaskNode[V]) {
	a.mask.release(m)
}

// LiveCounts reports, per size class, how many slots are currently
// allocated (not on a freelist), for sanity checks and tests that
// assert on allocator churn.
func (a *Arena[V]) LiveCounts() map[string]int {
	return map[string]int{
		"Scan16":  a.scan16.live(),
		"Scan32":  a.scan32.live(),
		"Scan64":  a.scan64.live(),
		"Scan128": a.scan128.live(),
		"Mask":    a.mask.live(),
	}
}

// Superblocks reports how many superblocks are currently retained per
// size class (i.e. not yet fully free and returned to the backing
// allocator).
func (a *Arena[V]) Superblocks() map[string]int {
	return map[string]int{
		"Scan16":  a.scan16.liveBlocks(),
		"Scan32":  a.scan32.liveBlocks(),
		"Scan64":  a.scan64.liveBlocks(),
		"Scan128": a.scan128.liveBlocks(),
		"Mask":    a.mask.liveBlocks(),
	}
}
