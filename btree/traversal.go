package btree

import "BTreeDB/types"

// Height is the number of levels, 1 for a tree that is a single leaf. All
// leaves are at the same depth, so following first children is enough.
func (t *BTree) Height() (int, error) {
	x, err := t.readNode(t.root)
	if err != nil {
		return 0, err
	}
	h := 1
	for !x.leaf() {
		if x, err = t.readNode(x.firstChild()); err != nil {
			return 0, err
		}
		h++
	}
	return h, nil
}

// ItemCount walks the whole tree and counts entries.
func (t *BTree) ItemCount() (uint64, error) {
	return t.itemCount(t.root)
}

func (t *BTree) itemCount(idx types.PageIndex) (uint64, error) {
	x, err := t.readNode(idx)
	if err != nil {
		return 0, err
	}
	total := uint64(x.count())
	if x.leaf() {
		return total, nil
	}
	for i := 0; i <= x.count(); i++ {
		n, err := t.itemCount(x.child(i))
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Min returns the entry with the smallest key; false on an empty tree.
func (t *BTree) Min() (Entry, bool, error) {
	x, err := t.readNode(t.root)
	if err != nil {
		return Entry{}, false, err
	}
	for !x.leaf() {
		if x, err = t.readNode(x.firstChild()); err != nil {
			return Entry{}, false, err
		}
	}
	if x.count() == 0 {
		return Entry{}, false, nil
	}
	return x.firstEntry(), true, nil
}

// Max returns the entry with the largest key; false on an empty tree.
func (t *BTree) Max() (Entry, bool, error) {
	x, err := t.readNode(t.root)
	if err != nil {
		return Entry{}, false, err
	}
	for !x.leaf() {
		if x, err = t.readNode(x.lastChild()); err != nil {
			return Entry{}, false, err
		}
	}
	if x.count() == 0 {
		return Entry{}, false, nil
	}
	return x.lastEntry(), true, nil
}
