package arena

import (
	"testing"

	"github.com/radix8/octrie/node"
)

func TestArena_AllocScanReturnsRequestedKind(t *testing.T) {
	a := New[int]()
	for _, k := range []node.Kind{node.KindScan16, node.KindScan32, node.KindScan64, node.KindScan128} {
		s := a.AllocScan(k)
		if s.Kind() != k {
			t.Fatalf("AllocScan(%v) returned kind %v", k, s.Kind())
		}
	}
}

func TestArena_AllocScanPanicsOnMaskKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic allocating a scan node with KindMask")
		}
	}()
	New[int]().AllocScan(node.KindMask)
}

func TestArena_FreeAndReallocReusesSlot(t *testing.T) {
	a := New[int]()
	s := a.AllocScan(node.KindScan16)
	node.SetPrefix[int](s, []byte("ab"))
	s.Base().SetValue(42)
	a.FreeScan(s)

	s2 := a.AllocScan(node.KindScan16)
	if len(s2.Prefix()) != 0 {
		t.Fatalf("reallocated slot carries stale prefix: %v", s2.Prefix())
	}
	if s2.Base().HasValue() {
		t.Fatalf("reallocated slot carries stale value")
	}
}

func TestArena_LiveCountsTrackAllocAndFree(t *testing.T) {
	a := New[int]()
	s1 := a.AllocScan(node.KindScan32)
	s2 := a.AllocScan(node.KindScan32)
	if got := a.LiveCounts()["Scan32"]; got != 2 {
		t.Fatalf("LiveCounts()[Scan32] = %d, want 2", got)
	}
	a.FreeScan(s1)
	if got := a.LiveCounts()["Scan32"]; got != 1 {
		t.Fatalf("LiveCounts()[Scan32] = %d, want 1 after one free", got)
	}
	a.FreeScan(s2)
	if got := a.LiveCounts()["Scan32"]; got != 0 {
		t.Fatalf("LiveCounts()[Scan32] = %d, want 0 after both freed", got)
	}
}

func TestArena_SuperblockReturnedOnceFullyFree(t *testing.T) {
	a := New[int]()
	slots := make([]node.ScanAccessor[int], 0, SuperblockSlots)
	for i := 0; i < SuperblockSlots; i++ {
		slots = append(slots, a.AllocScan(node.KindScan16))
	}
	if got := a.Superblocks()["Scan16"]; got != 1 {
		t.Fatalf("Superblocks()[Scan16] = %d, want 1 after filling exactly one superblock", got)
	}
	// Allocating one more forces a second superblock.
	extra := a.AllocScan(node.KindScan16)
	if got := a.Superblocks()["Scan16"]; got != 2 {
		t.Fatalf("Superblocks()[Scan16] = %d, want 2 after overflow", got)
	}
	a.FreeScan(extra)
	if got := a.Superblocks()["Scan16"]; got != 1 {
		t.Fatalf("Superblocks()[Scan16] = %d, want 1 after returning the overflow block", got)
	}
	for _, s := range slots {
		a.FreeScan(s)
	}
	if got := a.Superblocks()["Scan16"]; got != 0 {
		t.Fatalf("Superblocks()[Scan16] = %d, want 0 once every slot is freed", got)
	}
}

func TestArena_NextRegionMonotonicAndUniformUpperHalf(t *testing.T) {
	a := New[int]()
	prev := a.NextRegion()
	for i := 0; i < 8; i++ {
		r := a.NextRegion()
		if r <= prev {
			t.Fatalf("NextRegion() not monotonically increasing: %d <= %d", r, prev)
		}
		if r>>32 != prev>>32 {
			t.Fatalf("default arena's region tags should share an upper half, got %d vs %d", r>>32, prev>>32)
		}
		prev = r
	}
}

func TestArena_AllocMaskIsInitialized(t *testing.T) {
	a := New[int]()
	m := a.AllocMask()
	if m.Count() != 0 {
		t.Fatalf("fresh mask node should have zero branches, got %d", m.Count())
	}
	if m.Base().Kind() != node.KindMask {
		t.Fatalf("AllocMask returned kind %v", m.Base().Kind())
	}
}

var _ node.Allocator[int] = (*Arena[int])(nil)
