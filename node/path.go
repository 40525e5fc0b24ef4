package node

import "unsafe"

// PathElem is a per-level record used during iteration: which node is
// current, whether its own value (if any) has already been yielded,
// and which branch (if any) has been descended into so far. Recording
// this per level means nodes never need parent back-pointers.
type PathElem[V any] struct {
	Node *Node[V]

	// BaseLen is how many bytes of the iterator's key buffer preceded
	// this node's own contribution (its prefix, for a scan node; none,
	// for a mask node), so Next can truncate back to it when retrying
	// a different branch or ascending.
	BaseLen int

	// ValueDone reports whether Node's own value, if it has one, has
	// already been yielded.
	ValueDone bool

	// Descended reports whether a branch out of Node is currently
	// being visited.
	Descended bool

	// BranchIdx is the descended branch's index within a scan node's
	// sorted branch array. Unused for mask nodes.
	BranchIdx int

	// Octet is the descended branch's octet, for a mask node. Unused
	// for scan nodes (BranchIdx already names the branch there).
	Octet byte
}

// StackThreshold is the key-length cutoff below which a Path's backing
// storage is the embedded fixed array rather than a heap slice. Go's
// escape analysis, not this package, has the final say on where a
// given *Path value actually lives; this constant only decides whether
// Path allocates a second, dynamically sized backing array on top of
// its always-present inline one.
const StackThreshold = 256

// Path is the traversal path stack used by the iterator. For keys no
// longer than StackThreshold octets it never allocates beyond the Path
// value itself; longer keys fall back to a heap slice sized to the
// key's length.
type Path[V any] struct {
	small [StackThreshold + 1]PathElem[V]
	big   []PathElem[V]
	n     int
}

// NewPath returns a Path sized for a traversal of a key up to maxKeyLen
// octets long.
func NewPath[V any](maxKeyLen int) *Path[V] {
	p := &Path[V]{}
	if maxKeyLen > StackThreshold {
		p.big = make([]PathElem[V], 0, maxKeyLen+1)
	}
	return p
}

// HeapSize reports how many bytes of heap storage a Path for a key of
// length maxKeyLen would need beyond the Path value itself, letting a
// caller decide whether to stack-allocate its own Path.
func HeapSize[V any](maxKeyLen int) int {
	if maxKeyLen <= StackThreshold {
		return 0
	}
	var e PathElem[V]
	return (maxKeyLen + 1) * int(unsafe.Sizeof(e))
}

func (p *Path[V]) Push(e PathElem[V]) {
	if p.big != nil {
		p.big = append(p.big, e)
		p.n++
		return
	}
	p.small[p.n] = e
	p.n++
}

func (p *Path[V]) Pop() PathElem[V] {
	p.n--
	if p.big != nil {
		e := p.big[p.n]
		p.big = p.big[:p.n]
		return e
	}
	return p.small[p.n]
}

func (p *Path[V]) Len() int { return p.n }

func (p *Path[V]) At(i int) PathElem[V] {
	if p.big != nil {
		return p.big[i]
	}
	return p.small[i]
}

func (p *Path[V]) Last() PathElem[V] { return p.At(p.n - 1) }

// Top returns a pointer to the current top frame for in-place mutation
// (e.g. marking ValueDone once an iterator yields a node's value).
func (p *Path[V]) Top() *PathElem[V] {
	if p.big != nil {
		return &p.big[p.n-1]
	}
	return &p.small[p.n-1]
}

func (p *Path[V]) Reset() {
	p.n = 0
	if p.big != nil {
		p.big = p.big[:0]
	}
}
