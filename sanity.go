package octrie

import (
	"fmt"
	"unsafe"

	set3 "github.com/TomTonic/Set3"
	"github.com/radix8/octrie/node"
)

// SanityError describes a single structural invariant violation found
// by Tree.Sanity. Collecting every violation rather than stopping at
// the first makes a single Sanity call useful as a test assertion on
// its own.
type SanityError struct {
	Path   string
	Detail string
}

func (e *SanityError) Error() string {
	return fmt.Sprintf("octrie: sanity: %s: %s", e.Path, e.Detail)
}

// Sanity walks the whole tree and verifies every structural invariant
// on demand: branch-octet sorting in scan nodes, minimum-size-class
// fit, the no-empty-scan-node rule, mask-node bitmap/count coherence,
// long-pointer bookkeeping (a pointer-prefix node's lp_count and
// upper-half array, a long-pointer next-block's upper-half array),
// local next-block eligibility and uniqueness, region
// coherence of short-pointer children, absence of cycles or shared
// ownership between node slots, and that the total reachable value
// count matches Tree.Size().
func (t *Tree[V]) Sanity() []*SanityError {
	if t.root == nil {
		return nil
	}
	c := &sanityCheck[V]{
		visited: set3.Empty[uintptr](),
	}
	c.walk("root", t.root)
	if c.values != t.count {
		c.fail("root", fmt.Sprintf("reachable value count %d does not match tree size %d", c.values, t.count))
	}
	return c.errs
}

type sanityCheck[V any] struct {
	errs    []*SanityError
	visited *set3.Set3[uintptr]
	values  int
}

func (c *sanityCheck[V]) fail(path, detail string) {
	c.errs = append(c.errs, &SanityError{Path: path, Detail: detail})
}

func ptrIdentity[V any](n *node.Node[V]) uintptr {
	return uintptr(unsafe.Pointer(n))
}

func (c *sanityCheck[V]) walk(path string, n *node.Node[V]) {
	id := ptrIdentity(n)
	if c.visited.Contains(id) {
		c.fail(path, "node reachable from more than one parent slot (cycle or shared ownership)")
		return
	}
	c.visited.Add(id)

	if n.HasValue() {
		c.values++
	}

	if n.Kind() == node.KindMask {
		c.walkMask(path, n.AsMask())
		return
	}
	c.walkScan(path, n.AsScan())
}

func (c *sanityCheck[V]) walkScan(path string, s node.ScanAccessor[V]) {
	branches := s.Branches()
	children := s.Children()
	hasValue := s.Base().HasValue()

	if len(branches) != len(children) {
		c.fail(path, fmt.Sprintf("branch array length %d does not match child array length %d", len(branches), len(children)))
	}

	if len(branches) == 0 && !hasValue {
		c.fail(path, "scan node has neither branches nor a value")
	}

	for i := 1; i < len(branches); i++ {
		if branches[i] <= branches[i-1] {
			c.fail(path, fmt.Sprintf("branch octets not strictly increasing at index %d (%d <= %d)", i, branches[i], branches[i-1]))
		}
	}

	min := node.MinScanClass(len(s.Prefix()), len(branches), hasValue)
	if capacityRank(min) > capacityRank(s.Kind()) {
		c.fail(path, fmt.Sprintf("node is %s but minimum fitting class is %s", s.Kind(), min))
	}
	if node.ShouldShrink(s.Kind(), len(s.Prefix()), len(branches), hasValue) {
		c.fail(path, fmt.Sprintf("%s node with %d branches (value=%v) is below its shrink threshold", s.Kind(), len(branches), hasValue))
	}

	if len(s.Prefix()) > s.PrefixCap() {
		c.fail(path, fmt.Sprintf("prefix length %d exceeds class capacity %d", len(s.Prefix()), s.PrefixCap()))
	}
	wantCap := s.Capacity()
	if hasValue {
		wantCap = s.CapacityWithValue()
	}
	if len(branches) > wantCap {
		c.fail(path, fmt.Sprintf("branch count %d exceeds class capacity %d (value=%v)", len(branches), wantCap, hasValue))
	}

	if pp := s.PtrPrefix(); pp != nil {
		c.checkPointerPrefix(path, s.Base().Region(), pp, children)
	} else {
		for i, ch := range children {
			if uint32(ch.Region()>>32) != uint32(s.Base().Region()>>32) {
				c.fail(path, fmt.Sprintf("child %d's upper region differs from the node's but no pointer-prefix is attached", i))
			}
		}
	}

	for i, child := range children {
		childPath := fmt.Sprintf("%s/%d", path, branches[i])
		c.walk(childPath, child)
	}
}

func (c *sanityCheck[V]) checkPointerPrefix(path string, parentRegion uint64, pp *node.PointerPrefix, children []*node.Node[V]) {
	if len(pp.Upper) != len(children) {
		c.fail(path, fmt.Sprintf("pointer-prefix upper array length %d does not match child count %d", len(pp.Upper), len(children)))
		return
	}
	want := 0
	for i, ch := range children {
		upper := uint32(ch.Region() >> 32)
		if upper != pp.Upper[i] {
			c.fail(path, fmt.Sprintf("pointer-prefix upper[%d] stale: recorded %d, child's actual upper region is %d", i, pp.Upper[i], upper))
		}
		if uint32(parentRegion>>32) != upper {
			want++
		}
	}
	if want != pp.LPCount {
		c.fail(path, fmt.Sprintf("lp_count %d does not match actual long-pointer child count %d", pp.LPCount, want))
	}
}

func (c *sanityCheck[V]) walkMask(path string, m *node.MaskNode[V]) {
	if m.Count() < 2 {
		c.fail(path, fmt.Sprintf("mask node has only %d branches, below the minimum of 2 a mask conversion requires", m.Count()))
	}

	children := m.Children()
	if len(children) != m.Count() {
		c.fail(path, fmt.Sprintf("Children() returned %d nodes but Count() reports %d", len(children), m.Count()))
	}

	seenLocal := -1
	var popcountTotal int
	for word := 0; word < 256/32; word++ {
		nb := m.NextBlockAt(word)
		pc := m.SubMaskPopcount(byte(word))
		popcountTotal += pc
		if nb == nil {
			if pc != 0 {
				c.fail(path, fmt.Sprintf("sub-mask %d has %d set bits but no next-block", word, pc))
			}
			continue
		}
		if nb.IsLocal() {
			if seenLocal != -1 {
				c.fail(path, fmt.Sprintf("sub-masks %d and %d both claim the node's single local next-block slot", seenLocal, word))
			}
			seenLocal = word
			if nb.ChildCount() > node.LocalEligibleMax {
				c.fail(path, fmt.Sprintf("sub-mask %d occupies the local slot with %d children, past the eligibility ceiling of %d", word, nb.ChildCount(), node.LocalEligibleMax))
			}
			if nb.IsLong() {
				c.fail(path, fmt.Sprintf("sub-mask %d occupies the local slot while in long-pointer mode", word))
			}
		}
		if nb.ChildCount() != pc {
			c.fail(path, fmt.Sprintf("sub-mask %d next-block holds %d children but bitmap popcount is %d", word, nb.ChildCount(), pc))
		}
		for i, ch := range nb.ChildrenSlice() {
			upper := uint32(ch.Region() >> 32)
			if nb.IsLong() {
				if i < len(nb.UpperSlice()) && nb.UpperSlice()[i] != upper {
					c.fail(path, fmt.Sprintf("sub-mask %d next-block upper[%d] stale", word, i))
				}
			} else if upper != uint32(nb.Region()>>32) {
				c.fail(path, fmt.Sprintf("sub-mask %d child %d's upper region differs from its short-pointer next-block's", word, i))
			}
		}
	}
	if popcountTotal != m.Count() {
		c.fail(path, fmt.Sprintf("bitmap total popcount %d does not match Count() %d", popcountTotal, m.Count()))
	}

	// Independent cross-check of the same invariant via the ranged
	// popcount primitive, run over the full [0,255] bit range spanning
	// all eight sub-mask words, rather than the per-word loop above.
	words := m.BitmapWords()
	if rangeTotal := node.PopCountRange(words[:], 0, 255); rangeTotal != m.Count() {
		c.fail(path, fmt.Sprintf("ranged popcount over [0,255] %d does not match Count() %d", rangeTotal, m.Count()))
	}

	for b := 0; b < 256; b++ {
		octet := byte(b)
		if !m.Has(octet) {
			continue
		}
		child := m.Child(octet)
		if child == nil {
			c.fail(path, fmt.Sprintf("bitmap marks octet %d present but Child returned nil", b))
			continue
		}
		childPath := fmt.Sprintf("%s/%d", path, b)
		c.walk(childPath, child)
	}
}

func capacityRank(k node.Kind) int {
	switch k {
	case node.KindScan16:
		return 0
	case node.KindScan32:
		return 1
	case node.KindScan64:
		return 2
	case node.KindScan128:
		return 3
	default:
		return 4
	}
}
