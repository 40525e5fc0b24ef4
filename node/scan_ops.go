package node

import "sort"

var prefixCapTable = map[Kind]int{
	KindScan16:  6,
	KindScan32:  14,
	KindScan64:  28,
	KindScan128: maxPrefixLen,
}

func prefixCapFor(k Kind) int { return prefixCapTable[k] }

var scanClassOrder = [...]Kind{KindScan16, KindScan32, KindScan64, KindScan128}

// MinScanClass returns the smallest scan size class that can hold a
// node with the given prefix length, branch count, and value presence.
func MinScanClass(prefixLen, branchLen int, hasValue bool) Kind {
	for _, k := range scanClassOrder {
		cap := capacityFor(k)
		if hasValue {
			cap = capacityWithValueFor(k)
		}
		if branchLen <= cap && prefixLen <= prefixCapFor(k) {
			return k
		}
	}
	return KindScan128
}

// SetPrefix overwrites s's prefix with p. p must fit s's size class.
func SetPrefix[V any](s ScanAccessor[V], p []byte) {
	if len(p) > s.PrefixCap() {
		panic("node: prefix too long for size class")
	}
	dst := prefixBuf(s)
	copy(dst, p)
	s.SetPrefixLen(len(p))
}

// prefixBuf returns the full backing array (not just the in-use
// portion) so callers can write into it before adjusting the length.
func prefixBuf[V any](s ScanAccessor[V]) []byte {
	switch n := s.(type) {
	case *Scan16[V]:
		return n.prefix[:]
	case *Scan32[V]:
		return n.prefix[:]
	case *Scan64[V]:
		return n.prefix[:]
	case *Scan128[V]:
		return n.prefix[:]
	default:
		panic("node: unknown scan accessor concrete type")
	}
}

// TrimPrefixFront removes the leading k octets from s's prefix in
// place.
func TrimPrefixFront[V any](s ScanAccessor[V], k int) {
	cur := s.Prefix()
	if k > len(cur) {
		panic("node: TrimPrefixFront beyond prefix length")
	}
	buf := prefixBuf(s)
	copy(buf, cur[k:])
	s.SetPrefixLen(len(cur) - k)
}

// PrependPrefix inserts head in front of s's current prefix. Panics if
// the combined prefix exceeds s's prefix capacity.
func PrependPrefix[V any](s ScanAccessor[V], head []byte) {
	cur := append([]byte(nil), s.Prefix()...)
	if len(head)+len(cur) > s.PrefixCap() {
		panic("node: PrependPrefix exceeds size class capacity")
	}
	buf := prefixBuf(s)
	copy(buf, head)
	copy(buf[len(head):], cur)
	s.SetPrefixLen(len(head) + len(cur))
}

// InsertBranchSorted inserts octet b with child c into s at its sorted
// position, keeping the branch array strictly increasing. s must have
// spare capacity; callers are expected to have grown s first (see Grow).
func InsertBranchSorted[V any](s ScanAccessor[V], b byte, c *Node[V]) {
	branches := s.Branches()
	n := len(branches)
	if n >= s.Capacity() {
		panic("node: InsertBranchSorted called on a full node")
	}
	pos := sort.Search(n, func(i int) bool { return branches[i] >= b })
	bufB := branchBuf(s)
	bufC := childBuf(s)
	copy(bufB[pos+1:n+1], bufB[pos:n])
	copy(bufC[pos+1:n+1], bufC[pos:n])
	bufB[pos] = b
	bufC[pos] = c
	s.SetBranchLen(n + 1)
}

// FindBranch returns the index of octet b in s, or -1, through the
// branch finder selected by SetScanBackend.
func FindBranch[V any](s ScanAccessor[V], b byte) int {
	return findBranchOctet(s.Branches(), b)
}

// NextBranchAfter returns the index of the smallest branch octet
// strictly greater than after, or -1 if none.
func NextBranchAfter[V any](s ScanAccessor[V], after byte) int {
	branches := s.Branches()
	n := len(branches)
	i := sort.Search(n, func(i int) bool { return branches[i] > after })
	if i < n {
		return i
	}
	return -1
}

// RemoveBranchAt deletes the branch at index pos.
func RemoveBranchAt[V any](s ScanAccessor[V], pos int) {
	branches := s.Branches()
	n := len(branches)
	bufB := branchBuf(s)
	bufC := childBuf(s)
	copy(bufB[pos:n-1], bufB[pos+1:n])
	copy(bufC[pos:n-1], bufC[pos+1:n])
	bufC[n-1] = nil
	s.SetBranchLen(n - 1)
}

func branchBuf[V any](s ScanAccessor[V]) []byte {
	switch n := s.(type) {
	case *Scan16[V]:
		return n.branch[:]
	case *Scan32[V]:
		return n.branch[:]
	case *Scan64[V]:
		return n.branch[:]
	case *Scan128[V]:
		return n.branch[:]
	default:
		panic("node: unknown scan accessor concrete type")
	}
}

func childBuf[V any](s ScanAccessor[V]) []*Node[V] {
	switch n := s.(type) {
	case *Scan16[V]:
		return n.child[:]
	case *Scan32[V]:
		return n.child[:]
	case *Scan64[V]:
		return n.child[:]
	case *Scan128[V]:
		return n.child[:]
	default:
		panic("node: unknown scan accessor concrete type")
	}
}

// CopyBranchesAndValue copies branches, children, value and
// pointer-prefix state from src into dst without touching dst's
// prefix. The child-merge path uses it after setting up the combined
// parent+branch+child prefix on the destination.
func CopyBranchesAndValue[V any](dst, src ScanAccessor[V]) {
	srcB, srcC := src.Branches(), src.Children()
	dstB, dstC := branchBuf(dst), childBuf(dst)
	copy(dstB, srcB)
	copy(dstC, srcC)
	dst.SetBranchLen(len(srcB))
	if src.Base().HasValue() {
		dst.Base().SetValue(src.Base().Value())
	}
	if pp := src.PtrPrefix(); pp != nil {
		cp := &PointerPrefix{Upper: append([]uint32(nil), pp.Upper...), LPCount: pp.LPCount}
		dst.SetPtrPrefix(cp)
	}
}

// CopyScan copies prefix, branches, children, value and pointer-prefix
// state from src into dst (which must be able to hold src's prefix and
// branch count, though it may be a smaller class than src).
// Used by Grow/Shrink when a node is reallocated to a neighboring size
// class.
func CopyScan[V any](dst, src ScanAccessor[V]) {
	SetPrefix(dst, src.Prefix())
	srcB, srcC := src.Branches(), src.Children()
	dstB, dstC := branchBuf(dst), childBuf(dst)
	copy(dstB, srcB)
	copy(dstC, srcC)
	dst.SetBranchLen(len(srcB))
	if src.Base().HasValue() {
		dst.Base().SetValue(src.Base().Value())
	}
	dst.Base().SetRegion(src.Base().Region())
	if pp := src.PtrPrefix(); pp != nil {
		cp := &PointerPrefix{Upper: append([]uint32(nil), pp.Upper...), LPCount: pp.LPCount}
		dst.SetPtrPrefix(cp)
	}
}

// Grow reallocates s to the next-larger scan size class and copies its
// contents across, freeing the old node. Panics if s is already the
// largest scan class; callers must convert to a mask node instead.
func Grow[V any](a Allocator[V], s ScanAccessor[V]) ScanAccessor[V] {
	next, ok := nextClassUp(s.Kind())
	if !ok {
		panic("node: Grow called on the largest scan class")
	}
	bigger := a.AllocScan(next)
	CopyScan[V](bigger, s)
	a.FreeScan(s)
	return bigger
}

// Shrink reallocates s to the next-smaller scan size class. Callers
// are responsible for checking the hysteresis margin via ShouldShrink
// before calling this.
func Shrink[V any](a Allocator[V], s ScanAccessor[V]) ScanAccessor[V] {
	prev, ok := nextClassDown(s.Kind())
	if !ok {
		return s
	}
	smaller := a.AllocScan(prev)
	CopyScan[V](smaller, s)
	a.FreeScan(s)
	return smaller
}

func nextClassUp(k Kind) (Kind, bool) {
	switch k {
	case KindScan16:
		return KindScan32, true
	case KindScan32:
		return KindScan64, true
	case KindScan64:
		return KindScan128, true
	default:
		return k, false
	}
}

func nextClassDown(k Kind) (Kind, bool) {
	switch k {
	case KindScan32:
		return KindScan16, true
	case KindScan64:
		return KindScan32, true
	case KindScan128:
		return KindScan64, true
	default:
		return k, false
	}
}

// ShrinkHysteresisMargin is the extra free slot (beyond bare fit) the
// smaller class must still have before Erase shrinks into it, damping
// grow/shrink oscillation around a class boundary.
const ShrinkHysteresisMargin = 1

// ShouldShrink reports whether a node of class k holding the given
// payload should move down one size class. The smaller class must hold
// the prefix outright and the branch count with the hysteresis margin
// to spare.
func ShouldShrink(k Kind, prefixLen, branchLen int, hasValue bool) bool {
	prev, ok := nextClassDown(k)
	if !ok {
		return false
	}
	if prefixLen > prefixCapFor(prev) {
		return false
	}
	cap := capacityFor(prev)
	if hasValue {
		cap = capacityWithValueFor(prev)
	}
	return branchLen+ShrinkHysteresisMargin <= cap
}

// NewLeaf builds the shortest chain of scan nodes holding tail as a key
// residual terminated by value: each node's size class is the smallest
// that exactly accommodates its prefix segment (plus, for every node
// but the last, a single branch pointer to the next link in the chain).
func NewLeaf[V any](a Allocator[V], tail []byte, value V) *Node[V] {
	if len(tail) <= maxPrefixLen {
		k := MinScanClass(len(tail), 0, true)
		s := a.AllocScan(k)
		SetPrefix[V](s, tail)
		s.Base().SetValue(value)
		s.Base().SetRegion(a.NextRegion())
		return s.Base()
	}
	head := tail[:maxPrefixLen]
	branchOctet := tail[maxPrefixLen]
	rest := tail[maxPrefixLen+1:]
	child := NewLeaf[V](a, rest, value)

	s := a.AllocScan(KindScan128)
	SetPrefix[V](s, head)
	InsertBranchSorted[V](s, branchOctet, child)
	s.Base().SetRegion(a.NextRegion())
	MaybeActivateLongPointer[V](s, child)
	return s.Base()
}

// MaybeActivateLongPointer checks whether newChild's region differs
// from parent s's own and, if so, establishes the pointer-prefix
// auxiliary node tracking it. When a pointer-prefix already exists,
// the parallel upper-half array is rebuilt outright, since the sorted
// branch insert that preceded this call shifted the child array under
// it.
func MaybeActivateLongPointer[V any](s ScanAccessor[V], newChild *Node[V]) {
	if s.PtrPrefix() == nil && newChild.Region()>>32 == s.Base().Region()>>32 {
		return
	}
	RefreshLongPointer[V](s)
}

// RefreshLongPointer recomputes the pointer-prefix state from scratch
// against s's current children: lp_count, the parallel upper-half
// array, and the long-pointer flag itself. It creates the
// pointer-prefix node when a child's region diverges and drops it once
// none does. Used after any structural edit that shifts or replaces
// child array contents (sorted insert, RemoveBranchAt, child merge).
func RefreshLongPointer[V any](s ScanAccessor[V]) {
	parentUpper := uint32(s.Base().Region() >> 32)
	children := s.Children()
	count := 0
	for _, c := range children {
		if uint32(c.Region()>>32) != parentUpper {
			count++
		}
	}
	if count == 0 {
		s.SetPtrPrefix(nil)
		return
	}
	pp := s.PtrPrefix()
	if pp == nil {
		pp = &PointerPrefix{}
		s.SetPtrPrefix(pp)
	}
	pp.Upper = pp.Upper[:0]
	pp.LPCount = count
	for _, c := range children {
		pp.Upper = append(pp.Upper, uint32(c.Region()>>32))
	}
}
