package btree

import (
	"BTreeDB/internal/invariants"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Insert stores value under key, replacing the value of an existing key.
// Full nodes are split on the way down, so one pass reaches a leaf with room.
// On ErrStorageExhausted the tree is still valid and holds every entry it
// held before the call.
func (t *BTree) Insert(key Key, value Value) error {
	root, err := t.readNode(t.root)
	if err != nil {
		return err
	}

	// a full root is the only place the tree grows a level
	if root.count() == t.maxEntries {
		newRoot, err := t.allocNode(false)
		if err != nil {
			return err
		}
		newRoot.setChild(0, root.idx)
		if err := t.splitChild(newRoot, 0, root); err != nil {
			// the old root was not touched, drop the unlinked page
			if ferr := t.freeNode(newRoot.idx); ferr != nil {
				t.log.Warn("failed to release unlinked root", zap.Error(ferr))
			}
			return err
		}
		if err := t.setRoot(newRoot.idx); err != nil {
			return err
		}
		t.stats.RootSplits++
		t.log.Debug("root split", zap.Uint32("root", uint32(newRoot.idx)))
		root = newRoot
	}

	overwrite, err := t.insertNonFull(root, key, value)
	if err != nil {
		return err
	}
	if overwrite {
		t.stats.Overwrites++
	} else {
		t.stats.Inserts++
	}
	return t.mutated()
}

// insertNonFull walks down from x, which has room for one more entry.
func (t *BTree) insertNonFull(x node, key Key, value Value) (bool, error) {
	for {
		i, hit := x.search(key)
		if hit {
			x.setValue(i, value)
			return true, t.writeNode(x)
		}

		if x.leaf() {
			n := x.count()
			for j := n; j > i; j-- {
				x.setEntry(j, x.entry(j-1))
			}
			x.setEntry(i, Entry{Key: key, Value: value})
			x.setCount(n + 1)
			return false, t.writeNode(x)
		}

		c, err := t.readNode(x.child(i))
		if err != nil {
			return false, err
		}
		if c.count() == t.maxEntries {
			if err := t.splitChild(x, i, c); err != nil {
				return false, err
			}
			// x.entry(i) is now the promoted median
			switch median := x.key(i); {
			case key == median:
				x.setValue(i, value)
				return true, t.writeNode(x)
			case key > median:
				if c, err = t.readNode(x.child(i + 1)); err != nil {
					return false, err
				}
			}
		}
		x = c
	}
}

// splitChild splits the full child y = x.child(i). The upper t-1 entries and
// their t children move to a new sibling z, the median moves up into x at
// position i and z becomes x.child(i+1). x, y and z are all written.
func (t *BTree) splitChild(x node, i int, y node) error {
	if invariants.Enabled {
		if y.count() != t.maxEntries || x.count() >= t.maxEntries || x.child(i) != y.idx {
			panic("btree: splitChild precondition violated")
		}
	}

	z, err := t.allocNode(y.leaf())
	if err != nil {
		return errors.Wrapf(err, "split %s", y)
	}

	d := t.degree
	for j := 0; j < d-1; j++ {
		z.setEntry(j, y.entry(j+d))
	}
	if !y.leaf() {
		for j := 0; j < d; j++ { // one more for the trailing child
			z.setChild(j, y.child(j+d))
		}
	}
	z.setCount(d - 1)
	median := y.entry(d - 1)
	y.truncate(d-1, t.slots())

	n := x.count()
	for j := n; j > i; j-- { // include the trailing child of x
		x.setChild(j+1, x.child(j))
	}
	x.setChild(i+1, z.idx)
	for j := n - 1; j >= i; j-- {
		x.setEntry(j+1, x.entry(j))
	}
	x.setEntry(i, median)
	x.setCount(n + 1)

	t.stats.Splits++
	if err := t.writeNode(z); err != nil {
		return err
	}
	if err := t.writeNode(y); err != nil {
		return err
	}
	return t.writeNode(x)
}
