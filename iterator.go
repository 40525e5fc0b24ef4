package octrie

import "github.com/radix8/octrie/node"

// Iterator performs an in-order (ascending byte-lexicographic) walk of
// a Tree's keys. It owns a path stack and a key-reconstruction buffer;
// nodes carry no parent pointers to walk back through.
type Iterator[V any] struct {
	path      *node.Path[V]
	keyBuf    []byte
	maxKeyLen int
	valid     bool
}

// Begin returns an iterator positioned at the tree's first key in
// ascending order, or an invalid iterator if the tree is empty.
func (t *Tree[V]) Begin() *Iterator[V] {
	it := &Iterator[V]{
		path:      node.NewPath[V](t.maxKeyLen),
		keyBuf:    make([]byte, 0, t.maxKeyLen),
		maxKeyLen: t.maxKeyLen,
	}
	if t.root != nil {
		it.descendMin(t.root)
	}
	return it
}

// IterHeapSize reports the size in bytes of the dynamically sized path
// array a Begin call against t allocates: zero while MaxKeyLen is at
// most node.StackThreshold. It does not count the Iterator and Path
// values themselves or the key buffer, which Begin always allocates.
func (t *Tree[V]) IterHeapSize() int {
	return node.HeapSize[V](t.maxKeyLen)
}

// Valid reports whether the iterator is currently positioned at a key.
func (it *Iterator[V]) Valid() bool { return it.valid }

// Key returns a copy of the key at the iterator's current position.
func (it *Iterator[V]) Key() Key { return FromBytes(it.keyBuf) }

// KeyLen returns the length, in octets, of the current key.
func (it *Iterator[V]) KeyLen() int { return len(it.keyBuf) }

// Value returns the value at the iterator's current position.
func (it *Iterator[V]) Value() V {
	return it.path.Last().Node.Value()
}

// Clone returns an independent copy of it positioned at the same
// element; advancing the returned iterator never affects it.
func (it *Iterator[V]) Clone() *Iterator[V] {
	clone := &Iterator[V]{
		valid:     it.valid,
		keyBuf:    append([]byte(nil), it.keyBuf...),
		maxKeyLen: it.maxKeyLen,
		path:      node.NewPath[V](it.maxKeyLen),
	}
	for i := 0; i < it.path.Len(); i++ {
		clone.path.Push(it.path.At(i))
	}
	return clone
}

// descendMin pushes path frames while descending the smallest branch
// at every level, stopping at the first node carrying a value.
func (it *Iterator[V]) descendMin(n *node.Node[V]) bool {
	for n != nil {
		base := len(it.keyBuf)
		if n.Kind() == node.KindMask {
			m := n.AsMask()
			if m.Base().HasValue() {
				it.path.Push(node.PathElem[V]{Node: n, BaseLen: base})
				it.valid = true
				return true
			}
			b, child, ok := m.FirstOctet()
			if !ok {
				return false
			}
			it.keyBuf = append(it.keyBuf, b)
			it.path.Push(node.PathElem[V]{Node: n, BaseLen: base, ValueDone: true, Descended: true, Octet: b})
			n = child
			continue
		}
		s := n.AsScan()
		it.keyBuf = append(it.keyBuf, s.Prefix()...)
		if s.Base().HasValue() {
			it.path.Push(node.PathElem[V]{Node: n, BaseLen: base})
			it.valid = true
			return true
		}
		branches := s.Branches()
		if len(branches) == 0 {
			return false
		}
		it.keyBuf = append(it.keyBuf, branches[0])
		it.path.Push(node.PathElem[V]{Node: n, BaseLen: base, ValueDone: true, Descended: true, BranchIdx: 0})
		n = s.Children()[0]
	}
	return false
}

// Next advances the iterator to the next key in ascending order,
// reporting whether one exists: it ascends until an unvisited
// successor branch exists, then descends again smallest-first.
func (it *Iterator[V]) Next() bool {
	if !it.valid {
		return false
	}
	it.valid = false
	for it.path.Len() > 0 {
		top := it.path.Top()
		n := top.Node

		if n.Kind() == node.KindMask {
			m := n.AsMask()
			var b byte
			var child *node.Node[V]
			var ok bool
			switch {
			case !top.ValueDone:
				top.ValueDone = true
				b, child, ok = m.FirstOctet()
			case top.Descended:
				b, child, ok = m.NextOctetAfter(top.Octet)
			default:
				b, child, ok = m.FirstOctet()
			}
			if ok {
				top.Descended = true
				top.Octet = b
				it.keyBuf = it.keyBuf[:top.BaseLen]
				it.keyBuf = append(it.keyBuf, b)
				return it.descendMin(child)
			}
			it.path.Pop()
			continue
		}

		s := n.AsScan()
		prefixLen := len(s.Prefix())
		branches := s.Branches()

		if !top.ValueDone {
			top.ValueDone = true
			if len(branches) > 0 {
				top.Descended = true
				top.BranchIdx = 0
				it.keyBuf = it.keyBuf[:top.BaseLen+prefixLen]
				it.keyBuf = append(it.keyBuf, branches[0])
				return it.descendMin(s.Children()[0])
			}
			it.path.Pop()
			continue
		}
		if top.Descended {
			nextIdx := top.BranchIdx + 1
			if nextIdx < len(branches) {
				top.BranchIdx = nextIdx
				it.keyBuf = it.keyBuf[:top.BaseLen+prefixLen]
				it.keyBuf = append(it.keyBuf, branches[nextIdx])
				return it.descendMin(s.Children()[nextIdx])
			}
		}
		it.path.Pop()
	}
	return false
}
