package node

import "math/bits"

// subMasks is the number of 32-bit words partitioning the 256-octet
// branch space into sub-ranges, each owned by one next-block.
const subMasks = 8

// MaskNode is the 256-wide bitmap variant used once a scan node's
// branch count would exceed its largest size class. It stores no
// prefix of its own; any shared prefix was moved into the parent
// before conversion. Children live in eight independently-owned
// next-blocks, one per 32-wide sub-mask, rather than one flat
// 256-entry array.
type MaskNode[V any] struct {
	Node[V]

	bitmap [subMasks]uint32 // presence bits; bitmap[i] covers octets [32i, 32i+31]
	used   uint8            // bit i set iff bitmap[i] != 0; disambiguates 0 vs 256 total
	countB uint8             // low 8 bits of total branch count

	next []*NextBlock[V] // len == subMasks; nil entries mean an empty sub-mask

	// localSubmask names which sub-mask (0..subMasks-1), if any, is
	// currently using the embedded "local" storage slot. -1 means no
	// sub-mask currently holds it.
	localSubmask int
}

// NewMask allocates a fresh, empty mask node.
func NewMask[V any]() *MaskNode[V] {
	return InitMask(&MaskNode[V]{})
}

// InitMask (re)initializes m in place as a fresh, empty mask node and
// returns it. Used both by NewMask and by the arena when handing out a
// pooled slot that may be carrying a previous occupant's state.
func InitMask[V any](m *MaskNode[V]) *MaskNode[V] {
	*m = MaskNode[V]{localSubmask: -1}
	m.hdr = newHeader(KindMask)
	m.next = make([]*NextBlock[V], subMasks)
	return m
}

// Base returns the common node header view.
func (m *MaskNode[V]) Base() *Node[V] { return &m.Node }

// Count returns the total number of branches, resolving the 0-vs-256
// ambiguity of the wrapping 8-bit counter via the used bitmap.
func (m *MaskNode[V]) Count() int {
	if m.countB == 0 && m.used != 0 {
		return 256
	}
	return int(m.countB)
}

func (m *MaskNode[V]) setCount(n int) {
	m.countB = byte(n)
}

// Has reports whether octet b has a branch.
func (m *MaskNode[V]) Has(b byte) bool {
	word := b >> 5
	bit := b & 31
	return m.bitmap[word]&(1<<bit) != 0
}

func (m *MaskNode[V]) setBit(b byte) {
	word, bit := b>>5, b&31
	before := m.bitmap[word]
	m.bitmap[word] |= 1 << bit
	if before == 0 {
		m.used |= 1 << word
	}
}

func (m *MaskNode[V]) clearBit(b byte) {
	word, bit := b>>5, b&31
	m.bitmap[word] &^= 1 << bit
	if m.bitmap[word] == 0 {
		m.used &^= 1 << word
	}
}

// subMaskPopcount returns how many branches fall in sub-mask word.
func (m *MaskNode[V]) subMaskPopcount(word byte) int {
	return bits.OnesCount32(m.bitmap[word])
}

// SubMaskPopcount is the exported form of subMaskPopcount, used by the
// sanity checker to cross-check a next-block's child count against its
// owning sub-mask's bit population.
func (m *MaskNode[V]) SubMaskPopcount(word byte) int {
	return m.subMaskPopcount(word)
}

// BitmapWords returns a copy of the node's eight 32-bit sub-mask words,
// for callers (the sanity checker) that want to run the ranged bit
// primitives (PopCountRange, ScanForwardRange, ...) against the whole
// 256-bit bitmap at once instead of per-sub-mask.
func (m *MaskNode[V]) BitmapWords() [subMasks]uint32 {
	return m.bitmap
}

// NextBlockAt returns the next-block owning sub-mask word (0..7), or
// nil if that sub-mask currently has no branches.
func (m *MaskNode[V]) NextBlockAt(word int) *NextBlock[V] {
	return m.next[word]
}

// positionWithin returns the rank of octet b within its own sub-mask
// (its index into that sub-mask's next-block), via popcount over the
// bits below b in the same 32-bit word.
func (m *MaskNode[V]) positionWithin(b byte) int {
	word, bit := b>>5, b&31
	masked := m.bitmap[word] & ((uint32(1) << bit) - 1)
	return bits.OnesCount32(masked)
}

// Child returns the child pointer for octet b, or nil if absent.
func (m *MaskNode[V]) Child(b byte) *Node[V] {
	if !m.Has(b) {
		return nil
	}
	word := b >> 5
	nb := m.next[word]
	if nb == nil {
		return nil
	}
	pos := m.positionWithin(b)
	if pos >= len(nb.child) {
		return nil
	}
	return nb.child[pos]
}

// SetChild overwrites the child pointer for an already-present branch
// octet b in place, used when a recursive insert/erase replaces a
// subtree without changing m's own branch set.
func (m *MaskNode[V]) SetChild(b byte, c *Node[V]) {
	word := b >> 5
	nb := m.next[word]
	pos := m.positionWithin(b)
	nb.child[pos] = c
	if c.region>>32 != nb.region>>32 {
		nb.promoteLongPointer()
	}
	if nb.long {
		nb.upper[pos] = uint32(c.region >> 32)
		nb.demoteLongPointerIfPossible()
	}
	if nb.local && nb.long {
		nb.local = false
		m.localSubmask = -1
	}
	m.refreshLongPointerFlag()
	tryLocalReclaim(m)
}

// NextBlockFor returns the next-block owning octet b's sub-mask,
// creating one (the "local" slot if eligible) the first time a branch
// lands in that sub-mask.
func (m *MaskNode[V]) NextBlockFor(b byte, region uint64) *NextBlock[V] {
	word := b >> 5
	nb := m.next[word]
	if nb != nil {
		return nb
	}
	nb = newNextBlock[V](region)
	if m.localSubmask == -1 {
		nb.local = true
		m.localSubmask = int(word)
	}
	m.next[word] = nb
	return nb
}

// Children returns every live child pointer of m across all sub-masks,
// in ascending octet order — used by the tree's subtree-free walk and
// by the sanity checker's reachability pass.
func (m *MaskNode[V]) Children() []*Node[V] {
	out := make([]*Node[V], 0, m.Count())
	for _, nb := range m.next {
		if nb == nil {
			continue
		}
		out = append(out, nb.child...)
	}
	return out
}

// FirstOctet returns the smallest live branch octet and its child, or
// ok=false if m currently has no branches.
func (m *MaskNode[V]) FirstOctet() (octet byte, child *Node[V], ok bool) {
	for word := 0; word < subMasks; word++ {
		if m.bitmap[word] == 0 {
			continue
		}
		b := byte(bits.TrailingZeros32(m.bitmap[word]))
		return byte(word)*32 + b, m.Child(byte(word)*32 + b), true
	}
	return 0, nil, false
}

// NextOctetAfter returns the smallest live branch octet strictly
// greater than after, and its child, or ok=false if none exists. The
// iterator uses it to find the next unvisited sibling when ascending.
func (m *MaskNode[V]) NextOctetAfter(after byte) (octet byte, child *Node[V], ok bool) {
	startWord := int(after >> 5)
	// Remaining bits in after's own word, above after's own bit.
	if after != 255 {
		rest := m.bitmap[startWord] &^ ((uint32(2) << (after & 31)) - 1)
		if rest != 0 {
			b := byte(bits.TrailingZeros32(rest))
			o := byte(startWord)*32 + b
			return o, m.Child(o), true
		}
	}
	for word := startWord + 1; word < subMasks; word++ {
		if m.bitmap[word] == 0 {
			continue
		}
		b := byte(bits.TrailingZeros32(m.bitmap[word]))
		o := byte(word)*32 + b
		return o, m.Child(o), true
	}
	return 0, nil, false
}

// refreshLongPointerFlag keeps the header's long-pointer bit in sync
// with whether any next-block of m is in long-pointer mode.
func (m *MaskNode[V]) refreshLongPointerFlag() {
	for _, nb := range m.next {
		if nb != nil && nb.long {
			m.hdr = m.hdr.withLongPtr(true)
			return
		}
	}
	m.hdr = m.hdr.withLongPtr(false)
}

// nextBlockCapSteps are the power-of-two growth steps a next-block
// climbs through as its sub-mask fills, topping out at the sub-mask's
// full 32-entry range.
var nextBlockCapSteps = [...]int{4, 8, 16, 32}

// localEligibleMax is the branch-count ceiling under which a sub-mask's
// next-block may occupy the node's single embedded "local" slot.
const localEligibleMax = 12

// LocalEligibleMax is the exported form of localEligibleMax, for the
// sanity checker's local-slot eligibility verification.
const LocalEligibleMax = localEligibleMax

// NextBlock holds the child pointers for one 32-wide sub-mask of a mask
// node. It is a plain GC-managed growable slice rather than an
// arena-pooled fixed-size slot; the arena pools the primary node types
// only.
type NextBlock[V any] struct {
	region uint64
	long   bool // true once a child's region differs from this block's
	local  bool // true if this is the mask node's single embedded slot
	upper  []uint32
	child  []*Node[V]
}

func newNextBlock[V any](region uint64) *NextBlock[V] {
	return &NextBlock[V]{region: region}
}

// IsLocal reports whether nb occupies its mask node's single embedded
// local next-block slot.
func (nb *NextBlock[V]) IsLocal() bool { return nb.local }

// IsLong reports whether nb is in long-pointer mode.
func (nb *NextBlock[V]) IsLong() bool { return nb.long }

// Region returns the block's own region tag (inherited from its owning
// mask node), against which short-pointer children must match.
func (nb *NextBlock[V]) Region() uint64 { return nb.region }

// ChildCount returns the number of children nb currently holds.
func (nb *NextBlock[V]) ChildCount() int { return len(nb.child) }

// ChildrenSlice returns nb's live children, in ascending-octet order.
func (nb *NextBlock[V]) ChildrenSlice() []*Node[V] { return nb.child }

// UpperSlice returns nb's region-tag upper halves, parallel to
// ChildrenSlice, when nb is in long-pointer mode.
func (nb *NextBlock[V]) UpperSlice() []uint32 { return nb.upper }

func capStepAbove(n int) int {
	for _, c := range nextBlockCapSteps {
		if n <= c {
			return c
		}
	}
	return nextBlockCapSteps[len(nextBlockCapSteps)-1]
}

// insertAt inserts child c for an octet whose rank within the sub-mask
// is pos, growing the backing slice (by the next power-of-two step) if
// needed, and switching to long-pointer mode if c's region differs from
// the block's own.
func (nb *NextBlock[V]) insertAt(pos int, c *Node[V]) {
	n := len(nb.child)
	if cap(nb.child) <= n {
		step := capStepAbove(n + 1)
		grown := make([]*Node[V], n, step)
		copy(grown, nb.child)
		nb.child = grown
		if nb.long {
			growUpper := make([]uint32, n, step)
			copy(growUpper, nb.upper)
			nb.upper = growUpper
		}
	}
	nb.child = append(nb.child, nil)
	copy(nb.child[pos+1:], nb.child[pos:n])
	nb.child[pos] = c

	if c.region>>32 != nb.region>>32 {
		nb.promoteLongPointer()
	}
	if nb.long {
		upper := append(nb.upper, 0)
		copy(upper[pos+1:], upper[pos:n])
		upper[pos] = uint32(c.region >> 32)
		nb.upper = upper
	}
}

func (nb *NextBlock[V]) removeAt(pos int) {
	n := len(nb.child)
	copy(nb.child[pos:], nb.child[pos+1:])
	nb.child = nb.child[:n-1]
	if nb.long {
		copy(nb.upper[pos:], nb.upper[pos+1:])
		nb.upper = nb.upper[:n-1]
	}
}

// promoteLongPointer switches nb into long-pointer mode, backfilling the
// upper-region-tag array for every already-present child.
func (nb *NextBlock[V]) promoteLongPointer() {
	if nb.long {
		return
	}
	nb.long = true
	nb.upper = make([]uint32, len(nb.child), cap(nb.child))
	for i, c := range nb.child {
		nb.upper[i] = uint32(c.region >> 32)
	}
}

// demoteLongPointerIfPossible drops long-pointer mode once every child
// shares the block's own region again.
func (nb *NextBlock[V]) demoteLongPointerIfPossible() {
	if !nb.long {
		return
	}
	for _, c := range nb.child {
		if c.region>>32 != nb.region>>32 {
			return
		}
	}
	nb.long = false
	nb.upper = nil
}
