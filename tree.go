package octrie

import (
	"bytes"
	"errors"

	"github.com/radix8/octrie/arena"
	"github.com/radix8/octrie/node"
)

// ErrCapacity is returned by Insert when the tree already holds its
// configured maximum number of entries.
var ErrCapacity = errors.New("octrie: tree at capacity")

// Option configures a Tree at construction time.
type Option[V any] func(*Tree[V])

// WithArena binds the tree to an explicit arena instead of a private
// one created by New. Trees may share an arena only under external
// serialization; tests use explicit arenas to avoid ordering coupling.
func WithArena[V any](a node.Allocator[V]) Option[V] {
	return func(t *Tree[V]) { t.arena = a }
}

// WithCapacity bounds the tree's element count; Insert past this limit
// returns ErrCapacity. The default, zero, is unbounded.
func WithCapacity[V any](n int) Option[V] {
	return func(t *Tree[V]) { t.capacity = n }
}

// WithNullTerminatedKeys switches the tree to null-terminated key
// discipline: every operation infers a key's length by scanning for
// its first zero byte instead of taking the slice length as-is.
func WithNullTerminatedKeys[V any]() Option[V] {
	return func(t *Tree[V]) { t.nullTerminated = true }
}

// Tree is a radix tree mapping arbitrary byte-string keys to a single
// value each. The zero value is not usable; construct with New.
type Tree[V any] struct {
	root           *node.Node[V]
	count          int
	capacity       int
	maxKeyLen      int
	arena          node.Allocator[V]
	nullTerminated bool
}

// New returns an empty tree. Without WithArena it allocates a private
// arena.Arena for its own exclusive use.
func New[V any](opts ...Option[V]) *Tree[V] {
	t := &Tree[V]{}
	for _, opt := range opts {
		opt(t)
	}
	if t.arena == nil {
		t.arena = arena.New[V]()
	}
	return t
}

// Size returns the number of keys currently stored.
func (t *Tree[V]) Size() int { return t.count }

// Empty reports whether the tree holds no keys.
func (t *Tree[V]) Empty() bool { return t.count == 0 }

// MaxKeyLen returns the longest key ever inserted; it resets to zero
// once the tree becomes empty.
func (t *Tree[V]) MaxKeyLen() int { return t.maxKeyLen }

// MaxSize returns the tree's configured capacity, or -1 if unbounded.
func (t *Tree[V]) MaxSize() int {
	if t.capacity == 0 {
		return -1
	}
	return t.capacity
}

// Clear empties the tree, returning every node to its arena.
func (t *Tree[V]) Clear() {
	if t.root != nil {
		freeSubtree[V](t.arena, t.root)
	}
	t.root = nil
	t.count = 0
	t.maxKeyLen = 0
}

func freeSubtree[V any](a node.Allocator[V], n *node.Node[V]) {
	if n.Kind() == node.KindMask {
		m := n.AsMask()
		for _, c := range m.Children() {
			freeSubtree[V](a, c)
		}
		a.FreeMask(m)
		return
	}
	s := n.AsScan()
	for _, c := range s.Children() {
		freeSubtree[V](a, c)
	}
	a.FreeScan(s)
}

func (t *Tree[V]) growMaxKeyLen(n int) {
	if n > t.maxKeyLen {
		t.maxKeyLen = n
	}
}

func nullTerminatedLen(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}

// effectiveKey applies the tree's key discipline: under
// WithNullTerminatedKeys every operation infers the key's length by
// scanning for its first zero byte; otherwise the explicit length (the
// slice's own) is taken as-is.
func (t *Tree[V]) effectiveKey(key Key) Key {
	if t.nullTerminated {
		return key[:nullTerminatedLen(key)]
	}
	return key
}

// Insert adds key -> value if key is absent, or leaves the tree
// unchanged and reports the existing value if key is already present.
func (t *Tree[V]) Insert(key Key, value V) (existing V, occupied bool, err error) {
	key = t.effectiveKey(key)
	if t.capacity != 0 && t.count >= t.capacity {
		// A key that is already present occupies its slot rather than a
		// new one, so it reports occupied instead of failing.
		if v, ok := t.Find(key); ok {
			return v, true, nil
		}
		return existing, false, ErrCapacity
	}
	if t.root == nil {
		t.root = node.NewLeaf[V](t.arena, key, value)
		t.count++
		t.growMaxKeyLen(len(key))
		return existing, false, nil
	}
	newRoot, old, existed := t.insert(t.root, []byte(key), value)
	t.root = newRoot
	if !existed {
		t.count++
		t.growMaxKeyLen(len(key))
	}
	return old, existed, nil
}

// InsertNT is the null-terminated-key variant of Insert.
func (t *Tree[V]) InsertNT(key []byte, value V) (V, bool, error) {
	return t.Insert(Key(key[:nullTerminatedLen(key)]), value)
}

func (t *Tree[V]) insert(n *node.Node[V], key []byte, value V) (*node.Node[V], V, bool) {
	if n.Kind() == node.KindMask {
		return t.insertMask(n.AsMask(), key, value)
	}
	return t.insertScan(n.AsScan(), key, value)
}

func (t *Tree[V]) insertScan(s node.ScanAccessor[V], key []byte, value V) (*node.Node[V], V, bool) {
	var zero V
	prefix := s.Prefix()
	eq := longestCommonPrefix(prefix, key)

	if eq < len(prefix) {
		return t.split(s, key, eq, value)
	}

	rem := key[eq:]
	if len(rem) == 0 {
		return t.insertValueOnly(s, value)
	}

	branchOctet := rem[0]
	tail := rem[1:]

	if idx := node.FindBranch[V](s, branchOctet); idx >= 0 {
		child := s.Children()[idx]
		newChild, old, existed := t.insert(child, tail, value)
		s.Children()[idx] = newChild
		if !existed {
			node.RefreshLongPointer[V](s)
		}
		return s.Base(), old, existed
	}

	return t.insertNewBranch(s, branchOctet, tail, value), zero, false
}

// insertValueOnly handles a descent that has landed exactly on s with
// no residual key left. If s already carries a value it is left in
// place and reported as existing.
func (t *Tree[V]) insertValueOnly(s node.ScanAccessor[V], value V) (*node.Node[V], V, bool) {
	var zero V
	if s.Base().HasValue() {
		return s.Base(), s.Base().Value(), true
	}
	branchLen := len(s.Branches())
	if branchLen <= s.CapacityWithValue() {
		s.Base().SetValue(value)
		return s.Base(), zero, false
	}
	if s.Kind() != node.KindScan128 {
		grown := node.Grow[V](t.arena, s)
		grown.Base().SetValue(value)
		return grown.Base(), zero, false
	}
	ipRoot, mn := t.convertToMaskWithPrefixHandling(s)
	mn.Base().SetValue(value)
	return ipRoot, zero, false
}

// insertNewBranch adds a brand-new branch octet -> fresh leaf chain to
// s, growing or converting as needed.
func (t *Tree[V]) insertNewBranch(s node.ScanAccessor[V], branchOctet byte, tail []byte, value V) *node.Node[V] {
	cap := s.Capacity()
	if s.Base().HasValue() {
		cap = s.CapacityWithValue()
	}
	if len(s.Branches()) < cap {
		newLeaf := node.NewLeaf[V](t.arena, tail, value)
		node.InsertBranchSorted[V](s, branchOctet, newLeaf)
		node.MaybeActivateLongPointer[V](s, newLeaf)
		return s.Base()
	}
	if s.Kind() != node.KindScan128 {
		grown := node.Grow[V](t.arena, s)
		newLeaf := node.NewLeaf[V](t.arena, tail, value)
		node.InsertBranchSorted[V](grown, branchOctet, newLeaf)
		node.MaybeActivateLongPointer[V](grown, newLeaf)
		return grown.Base()
	}
	ipRoot, mn := t.convertToMaskWithPrefixHandling(s)
	newLeaf := node.NewLeaf[V](t.arena, tail, value)
	node.MaskInsert[V](t.arena, mn, branchOctet, newLeaf)
	return ipRoot
}

// convertToMaskWithPrefixHandling converts s to a mask node, first
// moving s's entire prefix into a fresh intermediate node if it
// carries one, since a mask node stores no prefix of its own. Returns
// the new subtree root (the intermediate node, or mn itself when s had
// no prefix to move) and the mask node, so the caller can still insert
// into it.
func (t *Tree[V]) convertToMaskWithPrefixHandling(s node.ScanAccessor[V]) (*node.Node[V], *node.MaskNode[V]) {
	prefix := s.Prefix()
	if len(prefix) == 0 {
		mn := node.ConvertScanToMask[V](t.arena, s)
		return mn.Base(), mn
	}
	ip := moveUpPrefix[V](t.arena, s, len(prefix)-1)
	mn := node.ConvertScanToMask[V](t.arena, s)
	ipScan := ip.AsScan()
	ipScan.Children()[0] = mn.Base()
	node.RefreshLongPointer[V](ipScan)
	return ip, mn
}

// moveUpPrefix relocates the first k octets of s's prefix into a fresh
// intermediate node, which keeps octet prefix[k] as its single branch
// into s (now holding only prefix[k+1:]). Returns the intermediate
// node, which replaces s at whatever position referenced it.
func moveUpPrefix[V any](a node.Allocator[V], s node.ScanAccessor[V], k int) *node.Node[V] {
	prefix := append([]byte(nil), s.Prefix()...)
	if k < 0 || k >= len(prefix) {
		panic("octrie: moveUpPrefix: k out of range")
	}
	head := prefix[:k]
	branchOctet := prefix[k]

	ipKind := node.MinScanClass(len(head), 1, false)
	ip := a.AllocScan(ipKind)
	node.SetPrefix[V](ip, head)
	node.InsertBranchSorted[V](ip, branchOctet, s.Base())
	ip.Base().SetRegion(a.NextRegion())

	node.TrimPrefixFront[V](s, k+1)
	node.MaybeActivateLongPointer[V](ip, s.Base())
	return ip.Base()
}

// split handles the divergence point of an insert: s's prefix agrees
// with key for the first eq bytes and diverges (or key ends) at
// offset eq.
func (t *Tree[V]) split(s node.ScanAccessor[V], key []byte, eq int, value V) (*node.Node[V], V, bool) {
	var zero V
	prefix := append([]byte(nil), s.Prefix()...)
	oldDivergentOctet := prefix[eq]
	node.TrimPrefixFront[V](s, eq+1)
	s = t.shrinkToFit(s)

	if eq == len(key) {
		pk := node.MinScanClass(eq, 1, true)
		p := t.arena.AllocScan(pk)
		node.SetPrefix[V](p, prefix[:eq])
		node.InsertBranchSorted[V](p, oldDivergentOctet, s.Base())
		p.Base().SetValue(value)
		p.Base().SetRegion(t.arena.NextRegion())
		node.MaybeActivateLongPointer[V](p, s.Base())
		return p.Base(), zero, false
	}

	newOctet := key[eq]
	newLeaf := node.NewLeaf[V](t.arena, key[eq+1:], value)
	pk := node.MinScanClass(eq, 2, false)
	p := t.arena.AllocScan(pk)
	node.SetPrefix[V](p, prefix[:eq])
	node.InsertBranchSorted[V](p, oldDivergentOctet, s.Base())
	node.InsertBranchSorted[V](p, newOctet, newLeaf)
	p.Base().SetRegion(t.arena.NextRegion())
	node.MaybeActivateLongPointer[V](p, s.Base())
	node.MaybeActivateLongPointer[V](p, newLeaf)
	return p.Base(), zero, false
}

func (t *Tree[V]) insertMask(m *node.MaskNode[V], key []byte, value V) (*node.Node[V], V, bool) {
	var zero V
	if len(key) == 0 {
		if m.Base().HasValue() {
			return m.Base(), m.Base().Value(), true
		}
		m.Base().SetValue(value)
		return m.Base(), zero, false
	}
	b, tail := key[0], key[1:]
	if child := m.Child(b); child != nil {
		newChild, old, existed := t.insert(child, tail, value)
		m.SetChild(b, newChild)
		return m.Base(), old, existed
	}
	newLeaf := node.NewLeaf[V](t.arena, tail, value)
	node.MaskInsert[V](t.arena, m, b, newLeaf)
	return m.Base(), zero, false
}

// Erase removes key and its value, reporting whether it was present.
func (t *Tree[V]) Erase(key Key) (V, bool) {
	var zero V
	key = t.effectiveKey(key)
	if t.root == nil {
		return zero, false
	}
	newRoot, val, found := t.erase(t.root, []byte(key))
	if !found {
		return zero, false
	}
	t.root = newRoot
	t.count--
	if t.root == nil {
		t.maxKeyLen = 0
	}
	return val, true
}

// EraseNT is the null-terminated-key variant of Erase.
func (t *Tree[V]) EraseNT(key []byte) (V, bool) {
	return t.Erase(Key(key[:nullTerminatedLen(key)]))
}

func (t *Tree[V]) erase(n *node.Node[V], key []byte) (*node.Node[V], V, bool) {
	if n.Kind() == node.KindMask {
		return t.eraseMask(n.AsMask(), key)
	}
	return t.eraseScan(n.AsScan(), key)
}

func (t *Tree[V]) eraseScan(s node.ScanAccessor[V], key []byte) (*node.Node[V], V, bool) {
	var zero V
	prefix := s.Prefix()
	eq := longestCommonPrefix(prefix, key)
	if eq != len(prefix) {
		return s.Base(), zero, false
	}
	rem := key[eq:]
	if len(rem) == 0 {
		if !s.Base().HasValue() {
			return s.Base(), zero, false
		}
		old := s.Base().Value()
		s.Base().ClearValue()
		return t.afterRemoval(s), old, true
	}
	b, tail := rem[0], rem[1:]
	idx := node.FindBranch[V](s, b)
	if idx < 0 {
		return s.Base(), zero, false
	}
	child := s.Children()[idx]
	newChild, old, found := t.erase(child, tail)
	if !found {
		return s.Base(), zero, false
	}
	if newChild == nil {
		node.RemoveBranchAt[V](s, idx)
		node.RefreshLongPointer[V](s)
	} else {
		s.Children()[idx] = newChild
		node.RefreshLongPointer[V](s)
	}
	return t.afterRemoval(s), old, true
}

// afterRemoval frees an emptied node so the removal propagates up,
// merges a single remaining child, or shrinks in place under the
// hysteresis margin.
func (t *Tree[V]) afterRemoval(s node.ScanAccessor[V]) *node.Node[V] {
	branchLen := len(s.Branches())
	hasValue := s.Base().HasValue()

	if branchLen == 0 && !hasValue {
		t.arena.FreeScan(s)
		return nil
	}

	if branchLen == 1 && !hasValue {
		if merged, ok := t.tryMergeChild(s); ok {
			return merged
		}
	}

	return t.shrinkToFit(s).Base()
}

// shrinkToFit walks s down the size-class ladder until the hysteresis
// margin stops it, reallocating through the arena at each step.
func (t *Tree[V]) shrinkToFit(s node.ScanAccessor[V]) node.ScanAccessor[V] {
	for node.ShouldShrink(s.Kind(), len(s.Prefix()), len(s.Branches()), s.Base().HasValue()) {
		s = node.Shrink[V](t.arena, s)
	}
	return s
}

// tryMergeChild fires when s has exactly one branch and no value: if
// its child is itself a scan node, fold s's prefix, the branch octet,
// and the child's prefix into one combined node carrying the child's
// own branches and value.
func (t *Tree[V]) tryMergeChild(s node.ScanAccessor[V]) (*node.Node[V], bool) {
	b := s.Branches()[0]
	child := s.Children()[0]
	if child.Kind() == node.KindMask {
		return nil, false
	}
	cs := child.AsScan()

	combined := make([]byte, 0, len(s.Prefix())+1+len(cs.Prefix()))
	combined = append(combined, s.Prefix()...)
	combined = append(combined, b)
	combined = append(combined, cs.Prefix()...)
	if len(combined) > node.MaxPrefixLen {
		return nil, false
	}

	k := node.MinScanClass(len(combined), len(cs.Branches()), cs.Base().HasValue())
	merged := t.arena.AllocScan(k)
	node.SetPrefix[V](merged, combined)
	node.CopyBranchesAndValue[V](merged, cs)
	merged.Base().SetRegion(t.arena.NextRegion())
	node.RefreshLongPointer[V](merged)

	t.arena.FreeScan(s)
	t.arena.FreeScan(cs)
	return merged.Base(), true
}

func (t *Tree[V]) eraseMask(m *node.MaskNode[V], key []byte) (*node.Node[V], V, bool) {
	var zero V
	if len(key) == 0 {
		if !m.Base().HasValue() {
			return m.Base(), zero, false
		}
		old := m.Base().Value()
		m.Base().ClearValue()
		return t.afterMaskRemoval(m), old, true
	}
	b, tail := key[0], key[1:]
	child := m.Child(b)
	if child == nil {
		return m.Base(), zero, false
	}
	newChild, old, found := t.erase(child, tail)
	if !found {
		return m.Base(), zero, false
	}
	if newChild == nil {
		node.MaskErase[V](m, b)
	} else {
		m.SetChild(b, newChild)
	}
	return t.afterMaskRemoval(m), old, true
}

// afterMaskRemoval converts a mask node back to a Scan128 node once
// its total branch count falls below MaskConvertDown.
func (t *Tree[V]) afterMaskRemoval(m *node.MaskNode[V]) *node.Node[V] {
	if m.Count() >= node.MaskConvertDown {
		return m.Base()
	}
	s := node.ConvertMaskToScan[V](t.arena, m)
	return s.Base()
}

// Find looks up key, reporting its value and presence.
func (t *Tree[V]) Find(key Key) (V, bool) {
	var zero V
	n := t.root
	rest := []byte(t.effectiveKey(key))
	for n != nil {
		if n.Kind() == node.KindMask {
			m := n.AsMask()
			if len(rest) == 0 {
				if m.Base().HasValue() {
					return m.Base().Value(), true
				}
				return zero, false
			}
			child := m.Child(rest[0])
			if child == nil {
				return zero, false
			}
			rest = rest[1:]
			n = child
			continue
		}
		s := n.AsScan()
		prefix := s.Prefix()
		if len(rest) < len(prefix) || !bytes.Equal(rest[:len(prefix)], prefix) {
			return zero, false
		}
		rest = rest[len(prefix):]
		if len(rest) == 0 {
			if s.Base().HasValue() {
				return s.Base().Value(), true
			}
			return zero, false
		}
		idx := node.FindBranch[V](s, rest[0])
		if idx < 0 {
			return zero, false
		}
		rest = rest[1:]
		n = s.Children()[idx]
	}
	return zero, false
}

// FindNT is the null-terminated-key variant of Find.
func (t *Tree[V]) FindNT(key []byte) (V, bool) {
	return t.Find(Key(key[:nullTerminatedLen(key)]))
}

// Clone returns a structurally independent tree holding the same
// key -> value pairs, built by re-inserting every entry in iteration
// order into a fresh tree (with a private arena) carrying the same
// capacity bound and key discipline.
func (t *Tree[V]) Clone() *Tree[V] {
	c := New[V](WithCapacity[V](t.capacity))
	c.nullTerminated = t.nullTerminated
	for it := t.Begin(); it.Valid(); it.Next() {
		c.Insert(it.Key(), it.Value())
	}
	return c
}

// FindNear returns the value of the longest key in the tree that is a
// prefix of key, with its matched length.
func (t *Tree[V]) FindNear(key Key) (value V, matchedLen int, found bool) {
	n := t.root
	rest := []byte(t.effectiveKey(key))
	consumed := 0
	for n != nil {
		if n.Kind() == node.KindMask {
			m := n.AsMask()
			if m.Base().HasValue() {
				value, matchedLen, found = m.Base().Value(), consumed, true
			}
			if len(rest) == 0 {
				break
			}
			child := m.Child(rest[0])
			if child == nil {
				break
			}
			consumed++
			rest = rest[1:]
			n = child
			continue
		}
		s := n.AsScan()
		prefix := s.Prefix()
		match := longestCommonPrefix(prefix, rest)
		if match < len(prefix) {
			break
		}
		consumed += match
		rest = rest[match:]
		if s.Base().HasValue() {
			value, matchedLen, found = s.Base().Value(), consumed, true
		}
		if len(rest) == 0 {
			break
		}
		idx := node.FindBranch[V](s, rest[0])
		if idx < 0 {
			break
		}
		consumed++
		rest = rest[1:]
		n = s.Children()[idx]
	}
	if !found {
		var zero V
		return zero, 0, false
	}
	return value, matchedLen, true
}
