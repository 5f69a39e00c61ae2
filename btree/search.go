package btree

// Search returns the value stored under key. A miss is not an error.
func (t *BTree) Search(key Key) (Value, bool, error) {
	x, err := t.readNode(t.root)
	if err != nil {
		return Value{}, false, err
	}
	for {
		i, hit := x.search(key)
		if hit {
			return x.value(i), true, nil
		}
		if x.leaf() {
			t.stats.SearchMisses++
			return Value{}, false, nil
		}
		if x, err = t.readNode(x.child(i)); err != nil {
			return Value{}, false, err
		}
	}
}
