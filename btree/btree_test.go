package btree

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"BTreeDB/types"

	"github.com/pkg/errors"
)

func newTestTree(t *testing.T, degree int, capacity uint32) *BTree {
	t.Helper()
	tree, err := NewBTree(NewInMemoryPager(capacity), Config{Degree: degree})
	if err != nil {
		t.Fatalf("NewBTree: %v", err)
	}
	return tree
}

func valueFor(k Key) Value {
	return Value{Offset: uint64(k) * 100, Size: k%512 + 1}
}

func mustCheck(t *testing.T, tree *BTree) {
	t.Helper()
	if err := tree.Check(); err != nil {
		var buf bytes.Buffer
		tree.InspectTo(&buf, 4)
		t.Fatalf("Check: %v\n%s", err, buf.String())
	}
}

func mustHeight(t *testing.T, tree *BTree) int {
	t.Helper()
	h, err := tree.Height()
	if err != nil {
		t.Fatalf("Height: %v", err)
	}
	return h
}

func mustCount(t *testing.T, tree *BTree) uint64 {
	t.Helper()
	n, err := tree.ItemCount()
	if err != nil {
		t.Fatalf("ItemCount: %v", err)
	}
	return n
}

func TestNodeLayout(t *testing.T) {
	if MaxEntriesPerPage != 204 {
		t.Fatalf("MaxEntriesPerPage = %d, want 204", MaxEntriesPerPage)
	}
	if MaxDegree != 102 {
		t.Fatalf("MaxDegree = %d, want 102", MaxDegree)
	}
	if slotPos(2*MaxDegree) > types.PayloadSize {
		t.Fatalf("a node of degree %d does not fit a page", MaxDegree)
	}

	x := node{idx: 1, data: make([]byte, types.PayloadSize)}
	x.init(true, 8)
	if !x.leaf() || x.count() != 0 || x.degree() != 4 {
		t.Fatalf("fresh leaf: leaf=%v count=%d degree=%d", x.leaf(), x.count(), x.degree())
	}
	for i := 0; i < 8; i++ {
		if x.child(i) != types.PoisonPage {
			t.Fatalf("leaf child %d = %#x", i, uint32(x.child(i)))
		}
	}
	for i, k := range []Key{3, 7, 11} {
		x.setEntry(i, Entry{Key: k, Value: valueFor(k)})
	}
	x.setCount(3)
	if x.child(1) != types.PoisonPage {
		t.Fatalf("setEntry touched the child field")
	}
	cases := []struct {
		key Key
		pos int
		hit bool
	}{{1, 0, false}, {3, 0, true}, {8, 2, false}, {11, 2, true}, {12, 3, false}}
	for _, c := range cases {
		pos, hit := x.search(c.key)
		if pos != c.pos || hit != c.hit {
			t.Errorf("search(%d) = %d,%v want %d,%v", c.key, pos, hit, c.pos, c.hit)
		}
	}
	if x.value(1) != valueFor(7) {
		t.Fatalf("value(1) = %+v", x.value(1))
	}
}

func TestNewBTreeConfig(t *testing.T) {
	for _, d := range []int{1, -3, MaxDegree + 1} {
		if _, err := NewBTree(NewInMemoryPager(0), Config{Degree: d}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("degree %d: expected ErrInvalidConfig, got %v", d, err)
		}
	}
	tree, err := NewBTree(NewInMemoryPager(0), Config{})
	if err != nil {
		t.Fatalf("NewBTree: %v", err)
	}
	if tree.Degree() != MaxDegree {
		t.Fatalf("default degree = %d", tree.Degree())
	}
	if h := mustHeight(t, tree); h != 1 {
		t.Fatalf("empty tree height = %d", h)
	}
	if _, ok, err := tree.Min(); ok || err != nil {
		t.Fatalf("Min on empty tree = %v, %v", ok, err)
	}
	if _, ok, err := tree.Max(); ok || err != nil {
		t.Fatalf("Max on empty tree = %v, %v", ok, err)
	}
	mustCheck(t, tree)
}

// TestDegreeTwoScenario follows a small tree through its first splits.
func TestDegreeTwoScenario(t *testing.T) {
	tree := newTestTree(t, 2, 0)
	keys := []Key{10, 20, 5, 6, 12, 30, 7, 17}

	for n, k := range keys {
		if err := tree.Insert(k, valueFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
		want := 1
		if n+1 >= 4 {
			want = 2
		}
		if h := mustHeight(t, tree); h != want {
			t.Fatalf("after %d inserts height = %d, want %d", n+1, h, want)
		}
		if _, ok, _ := tree.Search(99); ok {
			t.Fatalf("found 99 after inserting %d", k)
		}
		mustCheck(t, tree)
	}

	v, ok, err := tree.Search(17)
	if err != nil || !ok || v != valueFor(17) {
		t.Fatalf("Search(17) = %+v, %v, %v", v, ok, err)
	}

	root, err := tree.readNode(tree.Root())
	if err != nil {
		t.Fatalf("readNode: %v", err)
	}
	if root.count() != 2 || root.key(0) != 10 || root.key(1) != 20 {
		t.Fatalf("root = %v keys %d,%d, want [10 20]", root, root.key(0), root.key(1))
	}

	st := tree.Stats()
	if st.Splits != 2 || st.RootSplits != 1 || st.Inserts != 8 || st.Nodes != 4 {
		t.Fatalf("unexpected stats %+v", st)
	}

	var buf bytes.Buffer
	if err := tree.Dump(&buf); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !strings.Contains(buf.String(), "INTERNAL keys=[10 20]") {
		t.Fatalf("dump misses the root:\n%s", buf.String())
	}
}

func TestGrowAndShrink(t *testing.T) {
	for _, d := range []int{2, 3, 5} {
		tree := newTestTree(t, d, 0)
		max := 2*d - 1

		for k := 1; k <= max+1; k++ {
			if err := tree.Insert(Key(k), valueFor(Key(k))); err != nil {
				t.Fatalf("Insert(%d): %v", k, err)
			}
			want := 1
			if k == max+1 {
				want = 2
			}
			if h := mustHeight(t, tree); h != want {
				t.Fatalf("t=%d: height after %d inserts = %d, want %d", d, k, h, want)
			}
		}

		for k := 1; k <= max+1; k++ {
			if err := tree.Erase(Key(k)); err != nil {
				t.Fatalf("Erase(%d): %v", k, err)
			}
			mustCheck(t, tree)
		}
		if h := mustHeight(t, tree); h != 1 {
			t.Fatalf("t=%d: height after erasing everything = %d", d, h)
		}
		if n := mustCount(t, tree); n != 0 {
			t.Fatalf("t=%d: %d items left", d, n)
		}
		if st := tree.Stats(); st.RootCollapses != 1 || st.Nodes != 1 {
			t.Fatalf("t=%d: stats %+v", d, st)
		}
	}
}

func TestInsertOverwrites(t *testing.T) {
	tree := newTestTree(t, 2, 0)
	for k := Key(1); k <= 50; k++ {
		if err := tree.Insert(k, valueFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	// overwrite keys living at every level, including promoted medians
	for k := Key(1); k <= 50; k += 3 {
		if err := tree.Insert(k, Value{Offset: 7, Size: 7}); err != nil {
			t.Fatalf("overwrite %d: %v", k, err)
		}
	}
	if n := mustCount(t, tree); n != 50 {
		t.Fatalf("count after overwrites = %d, want 50", n)
	}
	for k := Key(1); k <= 50; k++ {
		v, ok, err := tree.Search(k)
		if err != nil || !ok {
			t.Fatalf("Search(%d) = %v, %v", k, ok, err)
		}
		want := valueFor(k)
		if (k-1)%3 == 0 {
			want = Value{Offset: 7, Size: 7}
		}
		if v != want {
			t.Fatalf("Search(%d) = %+v, want %+v", k, v, want)
		}
	}
	if st := tree.Stats(); st.Overwrites != 17 || st.Inserts != 50 {
		t.Fatalf("stats %+v", st)
	}
	mustCheck(t, tree)
}

func TestEraseMissingIsIdempotent(t *testing.T) {
	tree := newTestTree(t, 3, 0)
	for k := Key(0); k < 200; k += 2 {
		if err := tree.Insert(k, valueFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	h, n := mustHeight(t, tree), mustCount(t, tree)

	for _, k := range []Key{1, 51, 199, 1000} {
		if err := tree.Erase(k); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Erase(%d): expected ErrNotFound, got %v", k, err)
		}
		if mustHeight(t, tree) != h || mustCount(t, tree) != n {
			t.Fatalf("failed erase of %d changed the tree", k)
		}
	}
	if st := tree.Stats(); st.SearchMisses != 4 || st.Erases != 0 {
		t.Fatalf("stats %+v", st)
	}
	mustCheck(t, tree)
}

func TestMinMax(t *testing.T) {
	tree := newTestTree(t, 3, 0)
	rng := rand.New(rand.NewSource(7))
	for _, i := range rng.Perm(500) {
		k := Key(i*3 + 10)
		if err := tree.Insert(k, valueFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	min, ok, err := tree.Min()
	if err != nil || !ok || min.Key != 10 || min.Value != valueFor(10) {
		t.Fatalf("Min = %+v, %v, %v", min, ok, err)
	}
	max, ok, err := tree.Max()
	if err != nil || !ok || max.Key != 499*3+10 {
		t.Fatalf("Max = %+v, %v, %v", max, ok, err)
	}
}

// TestRandomInsertErase keeps a reference map next to the tree and checks
// round trips, counts and structure through a random workload.
func TestRandomInsertErase(t *testing.T) {
	for _, d := range []int{2, 4, MaxDegree} {
		tree := newTestTree(t, d, 0)
		rng := rand.New(rand.NewSource(int64(d)))
		ref := make(map[Key]Value)

		for op := 0; op < 20000; op++ {
			k := Key(rng.Intn(3000))
			if rng.Intn(3) > 0 {
				v := Value{Offset: rng.Uint64(), Size: rng.Uint32()}
				if err := tree.Insert(k, v); err != nil {
					t.Fatalf("t=%d Insert(%d): %v", d, k, err)
				}
				ref[k] = v
			} else {
				err := tree.Erase(k)
				if _, ok := ref[k]; ok {
					if err != nil {
						t.Fatalf("t=%d Erase(%d): %v", d, k, err)
					}
					delete(ref, k)
				} else if !errors.Is(err, ErrNotFound) {
					t.Fatalf("t=%d Erase(%d) of absent key: %v", d, k, err)
				}
			}
			if op%2000 == 0 {
				mustCheck(t, tree)
			}
		}

		mustCheck(t, tree)
		if n := mustCount(t, tree); n != uint64(len(ref)) {
			t.Fatalf("t=%d: count = %d, reference holds %d", d, n, len(ref))
		}
		for k, want := range ref {
			v, ok, err := tree.Search(k)
			if err != nil || !ok || v != want {
				t.Fatalf("t=%d Search(%d) = %+v,%v,%v want %+v", d, k, v, ok, err, want)
			}
		}
		st := tree.Stats()
		if d == 2 && (st.MergesLeaf == 0 || st.RebalancesLeaf == 0 || st.MergesInternal == 0) {
			t.Fatalf("t=2 workload never exercised merges/rebalances: %+v", st)
		}
	}
}

// TestHundredThousandKeys builds a tree of 100000 random unique keys and
// erases them in a different order.
func TestHundredThousandKeys(t *testing.T) {
	n := 100000
	if testing.Short() {
		n = 10000
	}
	for _, d := range []int{3, MaxDegree} {
		tree := newTestTree(t, d, 0)
		rng := rand.New(rand.NewSource(42))

		keys := make([]Key, n)
		for i, p := range rng.Perm(n) {
			keys[i] = Key(p)*7 + 1
		}
		for _, k := range keys {
			if err := tree.Insert(k, valueFor(k)); err != nil {
				t.Fatalf("t=%d Insert(%d): %v", d, k, err)
			}
		}
		if c := mustCount(t, tree); c != uint64(n) {
			t.Fatalf("t=%d: ItemCount = %d, want %d", d, c, n)
		}
		mustCheck(t, tree)

		rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
		for i, k := range keys {
			if err := tree.Erase(k); err != nil {
				t.Fatalf("t=%d Erase(%d) #%d: %v", d, k, i, err)
			}
		}
		if h := mustHeight(t, tree); h != 1 {
			t.Fatalf("t=%d: height of emptied tree = %d", d, h)
		}
		root, err := tree.readNode(tree.Root())
		if err != nil || root.count() != 0 || !root.leaf() {
			t.Fatalf("t=%d: root of emptied tree = %v, %v", d, root, err)
		}
		if live := tree.Stats().Nodes; live != 1 {
			t.Fatalf("t=%d: %d pages still live", d, live)
		}
	}
}

func TestStorageExhaustion(t *testing.T) {
	const capacity = 6
	tree := newTestTree(t, 2, capacity)

	var inserted []Key
	var failErr error
	for k := Key(1); k < 1000; k++ {
		if err := tree.Insert(k, valueFor(k)); err != nil {
			failErr = err
			break
		}
		inserted = append(inserted, k)
	}
	if !errors.Is(failErr, ErrStorageExhausted) {
		t.Fatalf("expected ErrStorageExhausted, got %v", failErr)
	}
	if len(inserted) == 0 {
		t.Fatalf("nothing fit in %d pages", capacity)
	}

	mustCheck(t, tree)
	for _, k := range inserted {
		if _, ok, err := tree.Search(k); !ok || err != nil {
			t.Fatalf("Search(%d) after exhaustion = %v, %v", k, ok, err)
		}
	}
	failed := inserted[len(inserted)-1] + 1
	if _, ok, _ := tree.Search(failed); ok {
		t.Fatalf("failed insert of %d is visible", failed)
	}
	if n := mustCount(t, tree); n != uint64(len(inserted)) {
		t.Fatalf("count = %d, want %d", n, len(inserted))
	}
	if live := tree.Stats().Nodes; live > capacity {
		t.Fatalf("%d live pages exceed capacity %d", live, capacity)
	}

	// freeing space makes room again
	for _, k := range inserted[:len(inserted)/2] {
		if err := tree.Erase(k); err != nil {
			t.Fatalf("Erase(%d): %v", k, err)
		}
	}
	if err := tree.Insert(failed, valueFor(failed)); err != nil {
		t.Fatalf("insert after erasing: %v", err)
	}
	mustCheck(t, tree)
}

func TestCheckDetectsCorruption(t *testing.T) {
	tree := newTestTree(t, 2, 0)
	for k := Key(1); k <= 20; k++ {
		if err := tree.Insert(k, valueFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	mustCheck(t, tree)

	root, err := tree.readNode(tree.Root())
	if err != nil {
		t.Fatalf("readNode: %v", err)
	}
	leftmost, err := tree.readNode(root.firstChild())
	if err != nil {
		t.Fatalf("readNode: %v", err)
	}
	for !leftmost.leaf() {
		if leftmost, err = tree.readNode(leftmost.firstChild()); err != nil {
			t.Fatalf("readNode: %v", err)
		}
	}
	leftmost.setEntry(0, Entry{Key: 10000})
	if err := tree.writeNode(leftmost); err != nil {
		t.Fatalf("writeNode: %v", err)
	}
	if err := tree.Check(); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestClosedTree(t *testing.T) {
	tree := newTestTree(t, 2, 0)
	if err := tree.Insert(1, valueFor(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tree.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, _, err := tree.Search(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Search after close: %v", err)
	}
	if err := tree.Insert(2, valueFor(2)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Insert after close: %v", err)
	}
}

func BenchmarkInsert(b *testing.B) {
	tree, err := NewBTree(NewInMemoryPager(0), Config{})
	if err != nil {
		b.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := rng.Uint32()
		if err := tree.Insert(k, valueFor(k)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearch(b *testing.B) {
	tree, err := NewBTree(NewInMemoryPager(0), Config{})
	if err != nil {
		b.Fatal(err)
	}
	const n = 100000
	for k := Key(0); k < n; k++ {
		if err := tree.Insert(k, valueFor(k)); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok, err := tree.Search(Key(i % n)); !ok || err != nil {
			b.Fatalf("Search(%d) = %v, %v", i%n, ok, err)
		}
	}
}
