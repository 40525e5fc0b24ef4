package node

import "unsafe"

// Node is the common header embedded as the first field of every
// concrete node representation. Casting a *Node[V] to a concrete
// pointer type (and back) is valid only because every concrete type
// embeds Node[V] as its first field.
type Node[V any] struct {
	hdr header

	// region is a synthetic allocation tag assigned by the arena. Its
	// upper 32 bits play the role of a pointer's upper address half for
	// the pointer-prefix / long-pointer bookkeeping, without requiring
	// a truncated, GC-unsafe pointer to be stored anywhere.
	region uint64

	value V
}

// Region returns the node's synthetic allocation region tag.
func (n *Node[V]) Region() uint64 { return n.region }

// SetRegion sets the node's synthetic allocation region tag. Exposed so
// the arena can stamp it at allocation time.
func (n *Node[V]) SetRegion(r uint64) { n.region = r }

// Kind reports the node's structural variant / size class.
func (n *Node[V]) Kind() Kind { return n.hdr.kind() }

// HasValue reports whether the key path ending at n carries a value.
func (n *Node[V]) HasValue() bool { return n.hdr.hasValue() }

// Value returns the value stored at n. Only meaningful when HasValue().
func (n *Node[V]) Value() V { return n.value }

// SetValue stores v at n and sets the has-value flag.
func (n *Node[V]) SetValue(v V) {
	n.value = v
	n.hdr = n.hdr.withHasValue(true)
}

// ClearValue removes any value from n.
func (n *Node[V]) ClearValue() {
	var zero V
	n.value = zero
	n.hdr = n.hdr.withHasValue(false)
}

// AsScan upcasts n to its concrete scan-node accessor. Panics if n is
// not a scan node.
func (n *Node[V]) AsScan() ScanAccessor[V] {
	switch n.hdr.kind() {
	case KindScan16:
		return (*Scan16[V])(unsafe.Pointer(n))
	case KindScan32:
		return (*Scan32[V])(unsafe.Pointer(n))
	case KindScan64:
		return (*Scan64[V])(unsafe.Pointer(n))
	case KindScan128:
		return (*Scan128[V])(unsafe.Pointer(n))
	default:
		panic("node: AsScan called on a " + n.hdr.kind().String() + " node")
	}
}

// AsMask upcasts n to its concrete mask-node view. Panics if n is not a
// mask node.
func (n *Node[V]) AsMask() *MaskNode[V] {
	if n.hdr.kind() != KindMask {
		panic("node: AsMask called on a " + n.hdr.kind().String() + " node")
	}
	return (*MaskNode[V])(unsafe.Pointer(n))
}

// ScanAccessor is the shared view over the four scan-node size classes.
// Mutation and traversal code is written once against this interface
// instead of once per size class.
type ScanAccessor[V any] interface {
	Base() *Node[V]
	Kind() Kind
	Capacity() int
	CapacityWithValue() int
	PrefixCap() int
	Prefix() []byte
	SetPrefixLen(n int)
	Branches() []byte
	Children() []*Node[V]
	SetBranchLen(n int)
	PtrPrefix() *PointerPrefix
	SetPtrPrefix(p *PointerPrefix)
}

// scanLayout is embedded by every concrete scan type and implements the
// parts of ScanAccessor that don't depend on the fixed array sizes.
type scanLayout[V any] struct {
	Node[V]
	ptrPrefix *PointerPrefix
}

func (s *scanLayout[V]) Base() *Node[V]  { return &s.Node }
func (s *scanLayout[V]) Kind() Kind      { return s.Node.hdr.kind() }
func (s *scanLayout[V]) PtrPrefix() *PointerPrefix { return s.ptrPrefix }
func (s *scanLayout[V]) SetPtrPrefix(p *PointerPrefix) {
	s.ptrPrefix = p
	s.Node.hdr = s.Node.hdr.withLongPtr(p != nil)
}
func (s *scanLayout[V]) SetBranchLen(n int) {
	s.Node.hdr = s.Node.hdr.withBranchLen(n)
}
func (s *scanLayout[V]) SetPrefixLen(n int) {
	s.Node.hdr = s.Node.hdr.withPrefixLen(n)
}

// Scan16 is the smallest scan size class: up to capScan16 branches.
type Scan16[V any] struct {
	scanLayout[V]
	prefix [6]byte
	branch [capScan16]byte
	child  [capScan16]*Node[V]
}

func (s *Scan16[V]) Capacity() int          { return capScan16 }
func (s *Scan16[V]) CapacityWithValue() int { return capScan16 - 1 }
func (s *Scan16[V]) PrefixCap() int         { return len(s.prefix) }
func (s *Scan16[V]) Prefix() []byte         { return s.prefix[:s.Node.hdr.prefixLen()] }
func (s *Scan16[V]) Branches() []byte       { return s.branch[:s.Node.hdr.branchLen()] }
func (s *Scan16[V]) Children() []*Node[V]   { return s.child[:s.Node.hdr.branchLen()] }

// Scan32 holds up to capScan32 branches.
type Scan32[V any] struct {
	scanLayout[V]
	prefix [14]byte
	branch [capScan32]byte
	child  [capScan32]*Node[V]
}

func (s *Scan32[V]) Capacity() int          { return capScan32 }
func (s *Scan32[V]) CapacityWithValue() int { return capScan32 - 1 }
func (s *Scan32[V]) PrefixCap() int         { return len(s.prefix) }
func (s *Scan32[V]) Prefix() []byte         { return s.prefix[:s.Node.hdr.prefixLen()] }
func (s *Scan32[V]) Branches() []byte       { return s.branch[:s.Node.hdr.branchLen()] }
func (s *Scan32[V]) Children() []*Node[V]   { return s.child[:s.Node.hdr.branchLen()] }

// Scan64 holds up to capScan64 branches.
type Scan64[V any] struct {
	scanLayout[V]
	prefix [28]byte
	branch [capScan64]byte
	child  [capScan64]*Node[V]
}

func (s *Scan64[V]) Capacity() int          { return capScan64 }
func (s *Scan64[V]) CapacityWithValue() int { return capScan64 - 1 }
func (s *Scan64[V]) PrefixCap() int         { return len(s.prefix) }
func (s *Scan64[V]) Prefix() []byte         { return s.prefix[:s.Node.hdr.prefixLen()] }
func (s *Scan64[V]) Branches() []byte       { return s.branch[:s.Node.hdr.branchLen()] }
func (s *Scan64[V]) Children() []*Node[V]   { return s.child[:s.Node.hdr.branchLen()] }

// Scan128 is the largest scan size class, holding up to capScan128
// branches and the full 127-octet maximum prefix.
type Scan128[V any] struct {
	scanLayout[V]
	prefix [maxPrefixLen]byte
	branch [capScan128]byte
	child  [capScan128]*Node[V]
}

func (s *Scan128[V]) Capacity() int          { return capScan128 }
func (s *Scan128[V]) CapacityWithValue() int { return capScan128 - 1 }
func (s *Scan128[V]) PrefixCap() int         { return len(s.prefix) }
func (s *Scan128[V]) Prefix() []byte         { return s.prefix[:s.Node.hdr.prefixLen()] }
func (s *Scan128[V]) Branches() []byte       { return s.branch[:s.Node.hdr.branchLen()] }
func (s *Scan128[V]) Children() []*Node[V]   { return s.child[:s.Node.hdr.branchLen()] }

// PointerPrefix is the auxiliary block attached to a scan node in
// long-pointer mode. Upper holds the region-tag upper halves, parallel
// to the owning node's Children() slice; LPCount is how many of those
// differ from the node's own.
type PointerPrefix struct {
	Upper   []uint32
	LPCount int
}

func newScan[V any](k Kind) ScanAccessor[V] {
	var s ScanAccessor[V]
	switch k {
	case KindScan16:
		n := &Scan16[V]{}
		n.hdr = newHeader(k)
		s = n
	case KindScan32:
		n := &Scan32[V]{}
		n.hdr = newHeader(k)
		s = n
	case KindScan64:
		n := &Scan64[V]{}
		n.hdr = newHeader(k)
		s = n
	case KindScan128:
		n := &Scan128[V]{}
		n.hdr = newHeader(k)
		s = n
	default:
		panic("node: newScan called with non-scan kind")
	}
	return s
}

// NewScan allocates a fresh, empty scan node of the given size class.
// Production code should prefer allocating through an arena; this is
// used directly by tests. The arena's pools carve their own slots and
// restamp them with ResetScanHeader instead.
func NewScan[V any](k Kind) ScanAccessor[V] { return newScan[V](k) }

// ResetScanHeader restamps a recycled scan slot's header for size class
// k, clearing branch length, prefix length, value, and long-pointer
// state. Used by the arena's pool when a freelisted slot is handed back
// out: the caller zeroes the slot's struct fields before this is
// called, which also zeroes the header's size code, so the header has
// to be restamped with the slot's own class.
func ResetScanHeader[V any](s ScanAccessor[V], k Kind) {
	s.Base().hdr = newHeader(k)
}
