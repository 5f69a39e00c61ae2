// Structure of the B-Tree
/*
Tree
 ├── Internal Node (entries + n+1 child page indexes)
 │      └── Child Internal Nodes ...
 │             └── Leaf Nodes (entries, child slots poisoned)

- every node lives in exactly one page of a Pager
- keys: sorted ascending, unique within the tree
- entry i separates child i (smaller keys) from child i+1 (larger keys)
- every node except the root holds between t-1 and 2t-1 entries
- all leaf nodes at same depth

Values are never interpreted by the tree; a Value is a (offset, size) pair
naming a record in some other file.
*/
package btree

import (
	"BTreeDB/types"

	"go.uber.org/zap"
)

type Key = uint32

// Value locates a record outside the tree.
type Value struct {
	Offset uint64
	Size   uint32
}

type Entry struct {
	Key   Key
	Value Value
}

// Checkpointer is told about every successful mutation. The checkpoint
// manager implements it.
type Checkpointer interface {
	MutationApplied(root types.PageIndex) error
}

type Config struct {
	// Degree is the minimum degree t. Zero selects MaxDegree, the largest
	// degree whose nodes fit a page.
	Degree       int
	Logger       *zap.Logger
	Checkpointer Checkpointer
}

type BTree struct {
	pager      Pager
	root       types.PageIndex
	degree     int
	maxEntries int // 2t-1
	minEntries int // t-1
	cp         Checkpointer
	log        *zap.Logger
	stats      Stats
	closed     bool
}

// Stats are per-tree operation counters.
type Stats struct {
	Inserts    uint64
	Overwrites uint64 // inserts that replaced the value of an existing key
	Erases     uint64

	// SearchMisses counts Search and Erase calls for absent keys.
	SearchMisses uint64

	Splits             uint64
	RootSplits         uint64
	RootCollapses      uint64
	Fixups             uint64
	MergesLeaf         uint64
	MergesInternal     uint64
	RebalancesLeaf     uint64
	RebalancesInternal uint64

	Nodes uint32 // live pages in the pager
}
