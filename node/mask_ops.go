package node

// ConvertScanToMask converts a zero-prefix Scan128 node into a mask
// node, distributing its branches across the eight sub-mask
// next-blocks. s must already have an empty prefix; the caller is
// responsible for having moved any prefix up into the parent first.
func ConvertScanToMask[V any](a Allocator[V], s ScanAccessor[V]) *MaskNode[V] {
	if len(s.Prefix()) != 0 {
		panic("node: ConvertScanToMask requires an empty prefix")
	}
	m := a.AllocMask()
	m.SetRegion(s.Base().Region())
	if s.Base().HasValue() {
		m.Base().SetValue(s.Base().Value())
	}
	branches, children := s.Branches(), s.Children()
	for i, b := range branches {
		MaskInsert[V](a, m, b, children[i])
	}
	a.FreeScan(s)
	return m
}

// ConvertMaskToScan converts a mask node back into a Scan128 node once
// its branch count has fallen below MaskConvertDown. The returned node
// has an empty prefix; the caller may subsequently attempt a parent
// merge.
func ConvertMaskToScan[V any](a Allocator[V], m *MaskNode[V]) ScanAccessor[V] {
	s := a.AllocScan(KindScan128)
	s.Base().SetRegion(m.Region())
	if m.Base().HasValue() {
		s.Base().SetValue(m.Base().Value())
	}
	for word := 0; word < subMasks; word++ {
		nb := m.next[word]
		if nb == nil {
			continue
		}
		base := byte(word * 32)
		for i, c := range nb.child {
			InsertBranchSorted[V](s, base+octetWithinWord(m, byte(word), i), c)
		}
	}
	RefreshLongPointer[V](s)
	a.FreeMask(m)
	return s
}

// octetWithinWord recovers the absolute octet value for the i-th set
// bit of sub-mask word (the inverse of positionWithin).
func octetWithinWord[V any](m *MaskNode[V], word byte, i int) byte {
	bits := m.bitmap[word]
	count := 0
	for b := 0; b < 32; b++ {
		if bits&(1<<uint(b)) != 0 {
			if count == i {
				return byte(b)
			}
			count++
		}
	}
	panic("node: octetWithinWord: rank out of range")
}

// MaskInsert adds branch b -> c to m: sets the presence bit, then
// creates/grows/shifts the owning sub-mask's next-block (using the
// embedded "local" slot when eligible), and activates long-pointer
// mode on that block if c's region differs from the node's own.
func MaskInsert[V any](a Allocator[V], m *MaskNode[V], b byte, c *Node[V]) {
	pos := m.positionWithin(b)
	nb := m.NextBlockFor(b, m.Region())
	nb.insertAt(pos, c)
	m.setBit(b)
	m.setCount(m.Count() + 1)
	if nb.local && (len(nb.child) > localEligibleMax || nb.long) {
		nb.local = false
		m.localSubmask = -1
	}
	m.refreshLongPointerFlag()
	tryLocalReclaim(m)
}

// MaskErase removes branch b from m: clears the presence bit, removes
// the child from its next-block, frees the next-block (or clears the
// local flag) if its sub-mask becomes empty, and re-attempts local-slot
// reclamation.
func MaskErase[V any](m *MaskNode[V], b byte) {
	if !m.Has(b) {
		return
	}
	word := b >> 5
	nb := m.next[word]
	pos := m.positionWithin(b)
	nb.removeAt(pos)
	m.clearBit(b)
	m.setCount(m.Count() - 1)

	if len(nb.child) == 0 {
		if nb.local {
			m.localSubmask = -1
		}
		m.next[word] = nil
	} else {
		nb.demoteLongPointerIfPossible()
	}
	m.refreshLongPointerFlag()
	tryLocalReclaim(m)
}

// tryLocalReclaim moves one eligible short-pointer next-block into the
// embedded local slot if the slot is free. Run after any next-block
// free or eviction.
func tryLocalReclaim[V any](m *MaskNode[V]) {
	if m.localSubmask != -1 {
		return
	}
	for word, nb := range m.next {
		if nb == nil || nb.long {
			continue
		}
		if len(nb.child) <= localEligibleMax {
			nb.local = true
			m.localSubmask = word
			return
		}
	}
}
