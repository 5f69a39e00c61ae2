package btree

import (
	"BTreeDB/internal/invariants"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
Deletion is bottom-up: erase descends to the key, removes it and, on the way
back, fixup repairs the child it came from if that child dropped below t-1
entries. A key found in an internal node is replaced by its in-order
predecessor, cut from the rightmost leaf of the left subtree by eraseMax.
*/

// Erase removes key from the tree. It returns ErrNotFound when the key is
// absent; the tree is not modified in that case.
func (t *BTree) Erase(key Key) error {
	root, err := t.readNode(t.root)
	if err != nil {
		return err
	}
	found, err := t.erase(root, key)
	if err != nil {
		return err
	}
	if !found {
		t.stats.SearchMisses++
		return errors.Wrapf(ErrNotFound, "erase key %d", key)
	}
	t.stats.Erases++

	// an internal root left without entries hands over to its only child,
	// the only place the tree loses a level
	if root.count() == 0 && !root.leaf() {
		old := root.idx
		if err := t.setRoot(root.firstChild()); err != nil {
			return err
		}
		if err := t.freeNode(old); err != nil {
			return err
		}
		t.stats.RootCollapses++
		t.log.Debug("root collapsed", zap.Uint32("root", uint32(t.root)))
	}
	return t.mutated()
}

// erase removes key from the subtree rooted at x. x is written if changed.
func (t *BTree) erase(x node, key Key) (bool, error) {
	i, hit := x.search(key)

	if x.leaf() {
		if !hit {
			return false, nil
		}
		n := x.count()
		for j := i; j < n-1; j++ {
			x.setEntry(j, x.entry(j+1))
		}
		x.truncate(n-1, t.slots())
		return true, t.writeNode(x)
	}

	y, err := t.readNode(x.child(i))
	if err != nil {
		return false, err
	}

	found := hit
	if hit {
		// cut the predecessor out of the left subtree and paste it over the key
		pred, err := t.eraseMax(y)
		if err != nil {
			return false, err
		}
		x.setEntry(i, pred)
		if err := t.writeNode(x); err != nil {
			return false, err
		}
	} else if found, err = t.erase(y, key); err != nil {
		return false, err
	}

	if err := t.fixup(x, i); err != nil {
		return false, err
	}
	return found, nil
}

// eraseMax removes and returns the largest entry of the subtree rooted at x.
// Underflow is repaired after the recursive call returns.
func (t *BTree) eraseMax(x node) (Entry, error) {
	if x.leaf() {
		n := x.count()
		if n == 0 {
			return Entry{}, errors.Wrapf(ErrCorruptReference, "eraseMax reached empty %s", x)
		}
		last := x.lastEntry()
		x.truncate(n-1, t.slots())
		return last, t.writeNode(x)
	}

	y, err := t.readNode(x.lastChild())
	if err != nil {
		return Entry{}, err
	}
	last, err := t.eraseMax(y)
	if err != nil {
		return Entry{}, err
	}
	return last, t.fixup(x, x.count())
}

// fixup restores minimum occupancy of the children of x around position i.
// The pair (child i, child i+1) is examined, with i clamped to the last
// entry. An underflowing pair is merged when both halves plus the separator
// fit one node, and rebalanced otherwise.
func (t *BTree) fixup(x node, i int) error {
	if invariants.Enabled && (x.leaf() || i > x.count() || x.count() == 0) {
		panic("btree: fixup on " + x.String() + " out of bounds")
	}
	if i == x.count() {
		i--
	}
	t.stats.Fixups++

	y, err := t.readNode(x.child(i))
	if err != nil {
		return err
	}
	z, err := t.readNode(x.child(i + 1))
	if err != nil {
		return err
	}
	if y.count() >= t.minEntries && z.count() >= t.minEntries {
		return nil
	}
	if y.count()+z.count() < t.maxEntries {
		return t.merge(x, i, y, z)
	}
	return t.rebalance(x, i, y, z)
}

// merge appends the separator x.entry(i) and all of z to y, removes the
// separator from x and frees z.
func (t *BTree) merge(x node, i int, y, z node) error {
	ny, nz := y.count(), z.count()

	y.setEntry(ny, x.entry(i))
	for j := 0; j < nz; j++ {
		y.setEntry(ny+1+j, z.entry(j))
	}
	if !y.leaf() {
		for j := 0; j <= nz; j++ { // trailing child of z included
			y.setChild(ny+1+j, z.child(j))
		}
	}
	y.setCount(ny + 1 + nz)

	n := x.count()
	for j := i; j < n-1; j++ {
		x.setEntry(j, x.entry(j+1))
	}
	for j := i + 1; j < n; j++ {
		x.setChild(j, x.child(j+1))
	}
	x.truncate(n-1, t.slots())

	if y.leaf() {
		t.stats.MergesLeaf++
	} else {
		t.stats.MergesInternal++
	}
	if err := t.writeNode(y); err != nil {
		return err
	}
	if err := t.writeNode(x); err != nil {
		return err
	}
	return t.freeNode(z.idx)
}

// rebalance spreads the entries of y and z evenly, y taking ceil(total/2),
// moving the separator x.entry(i) through the boundary.
func (t *BTree) rebalance(x node, i int, y, z node) error {
	oy, oz := y.count(), z.count()
	total := oy + oz
	nz := total / 2
	ny := total - nz
	internal := !y.leaf()

	switch {
	case oy < ny: // z -> y
		m := ny - oy
		y.setEntry(oy, x.entry(i))
		for j := 0; j < m-1; j++ {
			y.setEntry(oy+1+j, z.entry(j))
		}
		if internal {
			for j := 0; j < m; j++ {
				y.setChild(oy+1+j, z.child(j))
			}
		}
		x.setEntry(i, z.entry(m-1))

		for j := m; j < oz; j++ {
			z.setEntry(j-m, z.entry(j))
		}
		if internal {
			for j := m; j <= oz; j++ { // trailing child included
				z.setChild(j-m, z.child(j))
			}
		}
		y.setCount(ny)
		z.truncate(nz, t.slots())

	case oy > ny: // y -> z
		m := oy - ny
		for j := oz - 1; j >= 0; j-- {
			z.setEntry(j+m, z.entry(j))
		}
		if internal {
			for j := oz; j >= 0; j-- {
				z.setChild(j+m, z.child(j))
			}
		}
		z.setEntry(m-1, x.entry(i))
		for j := 0; j < m-1; j++ {
			z.setEntry(j, y.entry(ny+1+j))
		}
		if internal {
			for j := 0; j < m; j++ {
				z.setChild(j, y.child(ny+1+j))
			}
		}
		x.setEntry(i, y.entry(ny))
		z.setCount(nz)
		y.truncate(ny, t.slots())

	default:
		return nil
	}

	if internal {
		t.stats.RebalancesInternal++
	} else {
		t.stats.RebalancesLeaf++
	}
	if err := t.writeNode(z); err != nil {
		return err
	}
	if err := t.writeNode(y); err != nil {
		return err
	}
	return t.writeNode(x)
}
