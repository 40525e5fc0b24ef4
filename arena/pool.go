package arena

// slotRef locates a pooled slot within its owning pool: which
// superblock it came from, and that superblock's index.
type slotRef struct {
	block int
	slot  int
}

// pool is a per-size-class freelist carved from bulk Go-typed
// superblocks. A slot never moves once carved, only its occupancy
// changes, so pointers into a superblock stay valid for as long as the
// superblock itself is retained.
type pool[T any] struct {
	blocks [][]T   // blocks[i] == nil once that superblock has been returned
	usedCt []int   // live slot count per block; -1 once returned
	free   []*T    // slots available for reuse, across all retained blocks
	loc    map[*T]slotRef
	init   func(*T) // reinitializes a slot for reuse; nil means zero value only
}

func newPool[T any](init func(*T)) pool[T] {
	return pool[T]{init: init}
}

// grow carves a fresh superblock of SuperblockSlots slots and adds all
// of them to the freelist.
func (p *pool[T]) grow() {
	if p.loc == nil {
		p.loc = make(map[*T]slotRef)
	}
	idx := len(p.blocks)
	blk := make([]T, SuperblockSlots)
	p.blocks = append(p.blocks, blk)
	p.usedCt = append(p.usedCt, 0)
	for i := range blk {
		s := &p.blocks[idx][i]
		p.loc[s] = slotRef{block: idx, slot: i}
		p.free = append(p.free, s)
	}
}

// alloc returns a slot from the freelist, growing a new superblock
// first if none is available, and reinitializes it via init.
func (p *pool[T]) alloc() *T {
	if len(p.free) == 0 {
		p.grow()
	}
	n := len(p.free) - 1
	s := p.free[n]
	p.free = p.free[:n]
	ref := p.loc[s]
	p.usedCt[ref.block]++
	if p.init != nil {
		p.init(s)
	} else {
		var zero T
		*s = zero
	}
	return s
}

// release returns s to the freelist. Once every slot in s's superblock is
// free again, the superblock is dropped (blocks[i] = nil) so the
// backing array becomes eligible for garbage collection.
func (p *pool[T]) release(s *T) {
	ref, ok := p.loc[s]
	if !ok {
		panic("arena: free of a pointer this pool did not allocate")
	}
	p.free = append(p.free, s)
	p.usedCt[ref.block]--
	if p.usedCt[ref.block] == 0 {
		p.returnBlock(ref.block)
	}
}

// returnBlock releases superblock idx back to the runtime once it has
// no live slots, pruning every one of its slots out of the freelist and
// the location index so nothing keeps the backing array reachable.
func (p *pool[T]) returnBlock(idx int) {
	if p.blocks[idx] == nil {
		return
	}
	kept := p.free[:0]
	for _, s := range p.free {
		if p.loc[s].block == idx {
			delete(p.loc, s)
			continue
		}
		kept = append(kept, s)
	}
	p.free = kept
	p.blocks[idx] = nil
	p.usedCt[idx] = -1
}

// live reports how many slots across all retained superblocks are
// currently allocated.
func (p *pool[T]) live() int {
	n := 0
	for _, c := range p.usedCt {
		if c > 0 {
			n += c
		}
	}
	return n
}

// liveBlocks reports how many superblocks are currently retained (not
// yet returned to the runtime).
func (p *pool[T]) liveBlocks() int {
	n := 0
	for _, b := range p.blocks {
		if b != nil {
			n++
		}
	}
	return n
}
