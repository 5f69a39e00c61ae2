package btree

import (
	"BTreeDB/types"

	"github.com/pkg/errors"
)

// Check walks the whole tree and verifies its structure: key order and
// separator bounds, occupancy, equal leaf depth, child references, and that
// every live page of the pager is a reachable node. It returns an error
// wrapping ErrInvariantViolation on the first defect.
func (t *BTree) Check() error {
	c := checker{t: t, seen: make(map[types.PageIndex]bool), leafDepth: -1}
	if err := c.walk(t.root, 0, nil, nil); err != nil {
		return err
	}
	if live := t.pager.LivePages(); uint32(len(c.seen)) != live {
		return errors.Wrapf(ErrInvariantViolation, "%d nodes reachable, %d pages live", len(c.seen), live)
	}
	return nil
}

type checker struct {
	t         *BTree
	seen      map[types.PageIndex]bool
	leafDepth int
}

func violation(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvariantViolation, format, args...)
}

// walk checks the subtree at idx whose keys must lie strictly between lo and
// hi (nil meaning unbounded).
func (c *checker) walk(idx types.PageIndex, depth int, lo, hi *Key) error {
	if c.seen[idx] {
		return violation("page %d reachable twice", idx)
	}
	x, err := c.t.readNode(idx)
	if err != nil {
		return err
	}
	c.seen[idx] = true

	if x.degree() != c.t.degree {
		return violation("%s formatted for degree %d, tree has %d", x, x.degree(), c.t.degree)
	}
	n := x.count()
	if idx != c.t.root && n < c.t.minEntries {
		return violation("%s below minimum %d", x, c.t.minEntries)
	}
	for i := 0; i < n; i++ {
		k := x.key(i)
		if i > 0 && x.key(i-1) >= k {
			return violation("%s keys out of order at %d", x, i)
		}
		if (lo != nil && k <= *lo) || (hi != nil && k >= *hi) {
			return violation("%s key %d outside its separators", x, k)
		}
	}

	if x.leaf() {
		for i := 0; i <= n; i++ {
			if x.child(i) != types.PoisonPage {
				return violation("%s child slot %d is not poisoned", x, i)
			}
		}
		if c.leafDepth == -1 {
			c.leafDepth = depth
		} else if c.leafDepth != depth {
			return violation("%s at depth %d, other leaves at %d", x, depth, c.leafDepth)
		}
		return nil
	}

	if n == 0 {
		return violation("internal %s has no entries", x)
	}
	for i := 0; i <= n; i++ {
		child := x.child(i)
		if !child.Valid() {
			return violation("%s child %d is %#x", x, i, uint32(child))
		}
		var clo, chi *Key
		if i > 0 {
			k := x.key(i - 1)
			clo = &k
		} else {
			clo = lo
		}
		if i < n {
			k := x.key(i)
			chi = &k
		} else {
			chi = hi
		}
		if err := c.walk(child, depth+1, clo, chi); err != nil {
			return err
		}
	}
	return nil
}
