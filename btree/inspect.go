// Package btree: tree inspection for debugging.
// Use Dump(w) to print a human-readable, level by level dump of the tree.

package btree

import (
	"fmt"
	"io"

	"BTreeDB/types"
)

// Dump writes every level of the tree to w.
func (t *BTree) Dump(w io.Writer) error {
	return t.InspectTo(w, 0)
}

// InspectTo writes a human-readable dump of the first maxLevels levels of
// the tree to w (all levels when maxLevels <= 0): internal nodes with their
// keys and children, leaves with key -> (offset, size).
func (t *BTree) InspectTo(w io.Writer, maxLevels int) error {
	p := func(format string, args ...interface{}) { fmt.Fprintf(w, format, args...) }
	pln := func(s string) { fmt.Fprintln(w, s) }

	p("B-tree: degree=%d root=%d nodes=%d\n", t.degree, t.root, t.pager.LivePages())
	pln("  Nodes (BFS):")
	pln("  ---")

	queue := []types.PageIndex{t.root}
	level := 0
	for len(queue) > 0 && (maxLevels <= 0 || level < maxLevels) {
		size := len(queue)
		p("  Level %d:\n", level)
		for i := 0; i < size; i++ {
			x, err := t.readNode(queue[i])
			if err != nil {
				p("    [page %d] read error: %v\n", queue[i], err)
				continue
			}

			keys := make([]Key, x.count())
			for j := range keys {
				keys[j] = x.key(j)
			}
			if !x.leaf() {
				children := make([]types.PageIndex, x.count()+1)
				for j := range children {
					children[j] = x.child(j)
				}
				p("    [page %d] INTERNAL keys=%v children=%v\n", x.idx, keys, children)
				queue = append(queue, children...)
				continue
			}

			p("    [page %d] LEAF n=%d\n", x.idx, x.count())
			for j := 0; j < x.count(); j++ {
				v := x.value(j)
				p("      %d -> (offset=%d size=%d)\n", x.key(j), v.Offset, v.Size)
			}
		}
		pln("  ---")
		queue = queue[size:]
		level++
	}
	if len(queue) > 0 {
		p("  (%d nodes on level %d not shown)\n", len(queue), level)
	}
	return nil
}
