package octrie

import (
	"bytes"
	"errors"
	"sort"
	"testing"

	"github.com/radix8/octrie/arena"
	"github.com/radix8/octrie/debugalloc"
)

func TestTree_CapacityLimit(t *testing.T) {
	tr := New[int](WithArena[int](arena.New[int]()), WithCapacity[int](2))
	tr.Insert(Key("a"), 1)
	tr.Insert(Key("b"), 2)

	if _, _, err := tr.Insert(Key("c"), 3); !errors.Is(err, ErrCapacity) {
		t.Fatalf("Insert past capacity returned err=%v, want ErrCapacity", err)
	}
	// A key that is already present occupies its slot rather than a new
	// one, so it must not trip the capacity check.
	existing, occupied, err := tr.Insert(Key("a"), 99)
	if err != nil || !occupied || existing != 1 {
		t.Fatalf("re-insert at capacity = (%d,%v,%v), want (1,true,nil)", existing, occupied, err)
	}
	if tr.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", tr.Size())
	}
	if tr.MaxSize() != 2 {
		t.Fatalf("MaxSize() = %d, want 2", tr.MaxSize())
	}
}

func TestTree_MaxSizeUnbounded(t *testing.T) {
	tr := New[int](WithArena[int](arena.New[int]()))
	if tr.MaxSize() != -1 {
		t.Fatalf("MaxSize() = %d, want -1 for an unbounded tree", tr.MaxSize())
	}
}

func TestTree_NullTerminatedVariants(t *testing.T) {
	tr := New[int](WithArena[int](arena.New[int]()), WithNullTerminatedKeys[int]())

	if _, occupied, err := tr.InsertNT([]byte("foo\x00trailing"), 7); err != nil || occupied {
		t.Fatalf("InsertNT = (occupied=%v, err=%v)", occupied, err)
	}
	if v, ok := tr.FindNT([]byte("foo\x00other")); !ok || v != 7 {
		t.Fatalf("FindNT = (%d,%v), want (7,true)", v, ok)
	}
	if _, ok := tr.FindNT([]byte("fo\x00")); ok {
		t.Fatalf("FindNT of a shorter key should miss")
	}
	if v, ok := tr.EraseNT([]byte("foo\x00")); !ok || v != 7 {
		t.Fatalf("EraseNT = (%d,%v), want (7,true)", v, ok)
	}
	if tr.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", tr.Size())
	}
}

func TestTree_Clear(t *testing.T) {
	tr := New[int](WithArena[int](arena.New[int]()))
	for _, k := range []string{"alpha", "beta", "gamma"} {
		tr.Insert(Key(k), len(k))
	}
	tr.Clear()
	if !tr.Empty() || tr.Size() != 0 {
		t.Fatalf("tree not empty after Clear: size=%d", tr.Size())
	}
	if tr.MaxKeyLen() != 0 {
		t.Fatalf("MaxKeyLen() = %d, want 0 after Clear", tr.MaxKeyLen())
	}
	if _, ok := tr.Find(Key("alpha")); ok {
		t.Fatalf("Find after Clear should miss")
	}
	if _, _, err := tr.Insert(Key("delta"), 5); err != nil {
		t.Fatalf("Insert after Clear failed: %v", err)
	}
	collectSanity(t, tr)
}

func TestTree_Clone(t *testing.T) {
	tr := New[int](WithArena[int](arena.New[int]()))
	keys := []string{"car", "cart", "cat", "dog"}
	for i, k := range keys {
		tr.Insert(Key(k), i)
	}
	cl := tr.Clone()
	if cl.Size() != tr.Size() {
		t.Fatalf("clone size %d, want %d", cl.Size(), tr.Size())
	}
	for i, k := range keys {
		if v, ok := cl.Find(Key(k)); !ok || v != i {
			t.Fatalf("clone Find(%q) = (%d,%v), want (%d,true)", k, v, ok, i)
		}
	}
	cl.Erase(Key("cat"))
	if _, ok := tr.Find(Key("cat")); !ok {
		t.Fatalf("erasing from the clone must not affect the original")
	}
	collectSanity(t, cl)
}

func TestIterator_Clone(t *testing.T) {
	tr := New[int](WithArena[int](arena.New[int]()))
	for _, k := range []string{"a", "b", "c"} {
		tr.Insert(Key(k), 0)
	}
	it := tr.Begin()
	forked := it.Clone()
	it.Next()
	if string(forked.Key()) != "a" {
		t.Fatalf("forked iterator moved with the original: at %q", forked.Key())
	}
	if string(it.Key()) != "b" {
		t.Fatalf("original iterator at %q, want %q", it.Key(), "b")
	}
	forked.Next()
	forked.Next()
	if string(forked.Key()) != "c" {
		t.Fatalf("forked iterator at %q after two steps, want %q", forked.Key(), "c")
	}
}

func TestTree_IterHeapSize(t *testing.T) {
	tr := New[int](WithArena[int](arena.New[int]()))
	tr.Insert(Key("short"), 1)
	if got := tr.IterHeapSize(); got != 0 {
		t.Fatalf("IterHeapSize() = %d, want 0 for short keys", got)
	}
	long := bytes.Repeat([]byte{'x'}, 300)
	tr.Insert(Key(long), 2)
	if got := tr.IterHeapSize(); got <= 0 {
		t.Fatalf("IterHeapSize() = %d, want > 0 once max key length passes the stack threshold", got)
	}
}

func TestTree_FindNearAbsent(t *testing.T) {
	tr := New[int](WithArena[int](arena.New[int]()))
	tr.Insert(Key("prefix"), 1)
	if _, matched, found := tr.FindNear(Key("other")); found || matched != 0 {
		t.Fatalf("FindNear with no stored prefix = (matched=%d, found=%v), want (0,false)", matched, found)
	}
	if _, _, found := tr.FindNear(Key("pref")); found {
		t.Fatalf("FindNear(pref) should miss: no stored key is a prefix of it")
	}
}

// A scan node whose branch count crosses 15 exercises the header's
// shared size-code/branch-length bit at tree level.
func TestTree_WideScanNode(t *testing.T) {
	tr := New[int](WithArena[int](arena.New[int]()))
	for b := 0; b < 20; b++ {
		tr.Insert(Key{byte(b)}, b)
	}
	collectSanity(t, tr)
	for b := 0; b < 20; b++ {
		if v, ok := tr.Find(Key{byte(b)}); !ok || v != b {
			t.Fatalf("Find(%d) = (%d,%v), want (%d,true)", b, v, ok, b)
		}
	}
}

// Crossing the largest scan class's capacity converts to a mask node;
// erasing back below the conversion threshold converts back.
func TestTree_MaskConversionRoundTrip(t *testing.T) {
	tr := New[int](WithArena[int](arena.New[int]()))
	for b := 0; b < 30; b++ {
		tr.Insert(Key{byte(b)}, b)
	}
	collectSanity(t, tr)
	for b := 0; b < 11; b++ {
		if _, ok := tr.Erase(Key{byte(b)}); !ok {
			t.Fatalf("Erase(%d) reported not found", b)
		}
	}
	collectSanity(t, tr)
	for b := 11; b < 30; b++ {
		if v, ok := tr.Find(Key{byte(b)}); !ok || v != b {
			t.Fatalf("Find(%d) after conversion round trip = (%d,%v), want (%d,true)", b, v, ok, b)
		}
	}
}

// End-to-end run over the two-band debug allocator: every structural
// path must keep the long-pointer bookkeeping coherent under sanity's
// region checks, through inserts, mask conversions, and erases.
func TestTree_DebugAllocEndToEnd(t *testing.T) {
	tr := New[int](WithArena[int](debugalloc.New[int]()))

	var keys []string
	for hi := 0; hi < 64; hi++ {
		for lo := 0; lo < 64; lo += 7 {
			keys = append(keys, string([]byte{byte(hi), byte(lo)}))
		}
	}
	for i, k := range keys {
		if _, occupied, err := tr.Insert(Key(k), i); err != nil || occupied {
			t.Fatalf("Insert(%q) = (occupied=%v, err=%v)", k, occupied, err)
		}
	}
	collectSanity(t, tr)

	sort.Strings(keys)
	i := 0
	for it := tr.Begin(); it.Valid(); it.Next() {
		if string(it.Key()) != keys[i] {
			t.Fatalf("iteration[%d] = %q, want %q", i, it.Key(), keys[i])
		}
		i++
	}
	if i != len(keys) {
		t.Fatalf("iteration yielded %d keys, want %d", i, len(keys))
	}

	for _, k := range keys[:len(keys)/2] {
		if _, ok := tr.Erase(Key(k)); !ok {
			t.Fatalf("Erase(%q) reported not found", k)
		}
	}
	collectSanity(t, tr)
	for _, k := range keys[len(keys)/2:] {
		if _, ok := tr.Find(Key(k)); !ok {
			t.Fatalf("Find(%q) failed after partial erase", k)
		}
	}
	for _, k := range keys[len(keys)/2:] {
		if _, ok := tr.Erase(Key(k)); !ok {
			t.Fatalf("Erase(%q) reported not found", k)
		}
	}
	if !tr.Empty() {
		t.Fatalf("tree not empty after erasing every key, size=%d", tr.Size())
	}
}
