package node

import "testing"

func TestMaskInsertAndChild(t *testing.T) {
	a := &testAllocator{}
	m := NewMask[int]()
	children := map[byte]*Node[int]{}
	for _, b := range []byte{5, 200, 1, 255, 0, 128} {
		c := NewLeaf[int](a, []byte{b}, int(b))
		children[b] = c
		MaskInsert[int](a, m, b, c)
	}
	if m.Count() != 6 {
		t.Fatalf("Count() = %d, want 6", m.Count())
	}
	for b, want := range children {
		if got := m.Child(b); got != want {
			t.Errorf("Child(%d) = %p, want %p", b, got, want)
		}
	}
	if m.Child(17) != nil {
		t.Errorf("Child(17) should be nil, no such branch")
	}
}

func TestMaskEraseRemovesBranch(t *testing.T) {
	a := &testAllocator{}
	m := NewMask[int]()
	for _, b := range []byte{1, 2, 3} {
		MaskInsert[int](a, m, b, NewLeaf[int](a, []byte{b}, 0))
	}
	MaskErase[int](m, 2)
	if m.Has(2) {
		t.Fatalf("octet 2 should be gone after MaskErase")
	}
	if m.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", m.Count())
	}
	if m.Child(1) == nil || m.Child(3) == nil {
		t.Fatalf("erasing one branch should not disturb the others")
	}
}

func TestMaskFirstOctetAndNextOctetAfter(t *testing.T) {
	a := &testAllocator{}
	m := NewMask[int]()
	for _, b := range []byte{5, 40, 90, 250} {
		MaskInsert[int](a, m, b, NewLeaf[int](a, []byte{b}, 0))
	}
	first, _, ok := m.FirstOctet()
	if !ok || first != 5 {
		t.Fatalf("FirstOctet() = (%d,%v), want (5,true)", first, ok)
	}
	next, _, ok := m.NextOctetAfter(5)
	if !ok || next != 40 {
		t.Fatalf("NextOctetAfter(5) = (%d,%v), want (40,true)", next, ok)
	}
	next, _, ok = m.NextOctetAfter(40)
	if !ok || next != 90 {
		t.Fatalf("NextOctetAfter(40) = (%d,%v), want (90,true)", next, ok)
	}
	_, _, ok = m.NextOctetAfter(250)
	if ok {
		t.Fatalf("NextOctetAfter(250) should have no successor")
	}
	_, _, ok = m.NextOctetAfter(255)
	if ok {
		t.Fatalf("NextOctetAfter(255) should have no successor (255 is the last octet)")
	}
}

func TestMaskCountResolves256Ambiguity(t *testing.T) {
	a := &testAllocator{}
	m := NewMask[int]()
	for b := 0; b < 256; b++ {
		MaskInsert[int](a, m, byte(b), NewLeaf[int](a, []byte{byte(b)}, 0))
	}
	if got := m.Count(); got != 256 {
		t.Fatalf("Count() = %d, want 256", got)
	}
}

func TestTryLocalReclaimAssignsOneSubmask(t *testing.T) {
	a := &testAllocator{}
	m := NewMask[int]()
	MaskInsert[int](a, m, 10, NewLeaf[int](a, []byte{10}, 0))
	if m.localSubmask != 0 {
		t.Fatalf("first eligible sub-mask should claim the local slot, got %d", m.localSubmask)
	}
	MaskInsert[int](a, m, 40, NewLeaf[int](a, []byte{40}, 0))
	if m.localSubmask != 0 {
		t.Fatalf("local slot should not move once claimed, got %d", m.localSubmask)
	}
}

func TestLocalSlotEvictedPastEligibility(t *testing.T) {
	a := &testAllocator{}
	m := NewMask[int]()
	// Fill sub-mask 0 one past the local-slot ceiling; the slot must be
	// surrendered (and may be re-granted to another eligible sub-mask,
	// of which there are none yet).
	for b := 0; b <= localEligibleMax; b++ {
		MaskInsert[int](a, m, byte(b), NewLeaf[int](a, []byte{byte(b)}, 0))
	}
	if nb := m.NextBlockAt(0); nb.IsLocal() {
		t.Fatalf("sub-mask 0 still holds the local slot with %d children", nb.ChildCount())
	}
	// A later, smaller sub-mask reclaims the freed slot.
	MaskInsert[int](a, m, 40, NewLeaf[int](a, []byte{40}, 0))
	if nb := m.NextBlockAt(1); !nb.IsLocal() {
		t.Fatalf("freed local slot was not reclaimed by an eligible sub-mask")
	}
}

func TestLocalSlotEvictedOnLongPromotion(t *testing.T) {
	a := &testAllocator{}
	m := NewMask[int]()
	m.SetRegion(1)
	c := NewLeaf[int](a, []byte{7}, 0)
	c.SetRegion(5 << 32)
	MaskInsert[int](a, m, 7, c)
	nb := m.NextBlockAt(0)
	if !nb.IsLong() {
		t.Fatalf("cross-region child should have promoted the next-block to long-pointer mode")
	}
	if nb.IsLocal() {
		t.Fatalf("a long-pointer next-block must not occupy the local slot")
	}
}

func TestConvertScanToMaskAndBack(t *testing.T) {
	a := &testAllocator{}
	s := NewScan[int](KindScan128)
	s.Base().SetRegion(a.NextRegion())
	want := map[byte]int{}
	for _, b := range []byte{1, 2, 3, 4, 5} {
		InsertBranchSorted[int](s, b, NewLeaf[int](a, []byte{b}, int(b)*10))
		want[b] = int(b) * 10
	}
	m := ConvertScanToMask[int](a, s)
	if m.Count() != len(want) {
		t.Fatalf("Count() after conversion = %d, want %d", m.Count(), len(want))
	}
	for b, v := range want {
		c := m.Child(b)
		if c == nil || c.Value() != v {
			t.Fatalf("Child(%d) after conversion missing or wrong value", b)
		}
	}

	back := ConvertMaskToScan[int](a, m)
	if back.Kind() != KindScan128 {
		t.Fatalf("ConvertMaskToScan returned kind %v, want Scan128", back.Kind())
	}
	if len(back.Branches()) != len(want) {
		t.Fatalf("branch count after converting back = %d, want %d", len(back.Branches()), len(want))
	}
	for i, b := range back.Branches() {
		c := back.Children()[i]
		if c.Value() != want[b] {
			t.Fatalf("branch %d value mismatch after round trip", b)
		}
	}
}

func TestConvertScanToMaskRequiresEmptyPrefix(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic converting a scan node with a non-empty prefix")
		}
	}()
	a := &testAllocator{}
	s := NewScan[int](KindScan128)
	SetPrefix[int](s, []byte("nonempty"))
	ConvertScanToMask[int](a, s)
}
