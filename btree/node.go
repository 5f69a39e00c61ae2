package btree

import (
	"BTreeDB/types"
	"encoding/binary"
	"fmt"
)

/*
A node is a view over one page payload:

	| leaf (1B) | degree (1B) | pad (2B) | count (4B) |  slot 0 | ... | slot 2t-1 |

	slot: | child (4B) | key (4B) | offset (8B) | size (4B) |

Entry i lives in slot i together with child i, the subtree of keys below
entry i. A node with n entries uses n+1 slots: slot n carries only the
trailing child. Leaves keep every child field set to PoisonPage. Every node
records the degree of the tree that formatted it, so a reopened tree can
recover it.
*/

const (
	nodeHeaderSize = 8
	slotSize       = 20

	offChild    = 0
	offKey      = 4
	offValueOff = 8
	offValueLen = 16

	// MaxEntriesPerPage is how many slots fit one page payload.
	MaxEntriesPerPage = (types.PayloadSize - nodeHeaderSize) / slotSize
	// MaxDegree is the largest minimum degree whose 2t slots fit a page.
	MaxDegree = MaxEntriesPerPage / 2
)

type node struct {
	idx  types.PageIndex
	data []byte
}

func slotPos(i int) int {
	return nodeHeaderSize + i*slotSize
}

func (n node) leaf() bool {
	return n.data[0] == 1
}

// degree is the minimum degree recorded at init, 0 for an unformatted page.
func (n node) degree() int {
	return int(n.data[1])
}

func (n node) count() int {
	return int(binary.LittleEndian.Uint32(n.data[4:8]))
}

func (n node) setCount(c int) {
	binary.LittleEndian.PutUint32(n.data[4:8], uint32(c))
}

func (n node) child(i int) types.PageIndex {
	return types.PageIndex(binary.LittleEndian.Uint32(n.data[slotPos(i)+offChild:]))
}

func (n node) setChild(i int, c types.PageIndex) {
	binary.LittleEndian.PutUint32(n.data[slotPos(i)+offChild:], uint32(c))
}

func (n node) key(i int) Key {
	return binary.LittleEndian.Uint32(n.data[slotPos(i)+offKey:])
}

func (n node) value(i int) Value {
	p := slotPos(i)
	return Value{
		Offset: binary.LittleEndian.Uint64(n.data[p+offValueOff:]),
		Size:   binary.LittleEndian.Uint32(n.data[p+offValueLen:]),
	}
}

func (n node) setValue(i int, v Value) {
	p := slotPos(i)
	binary.LittleEndian.PutUint64(n.data[p+offValueOff:], v.Offset)
	binary.LittleEndian.PutUint32(n.data[p+offValueLen:], v.Size)
}

func (n node) entry(i int) Entry {
	return Entry{Key: n.key(i), Value: n.value(i)}
}

// setEntry leaves the child field of slot i alone.
func (n node) setEntry(i int, e Entry) {
	binary.LittleEndian.PutUint32(n.data[slotPos(i)+offKey:], e.Key)
	n.setValue(i, e.Value)
}

func (n node) firstEntry() Entry { return n.entry(0) }
func (n node) lastEntry() Entry { return n.entry(n.count() - 1) }
func (n node) firstChild() types.PageIndex { return n.child(0) }
func (n node) lastChild() types.PageIndex { return n.child(n.count()) }

// init formats an empty node over slots slot positions.
func (n node) init(leaf bool, slots int) {
	clear(n.data[:slotPos(slots)])
	n.data[1] = byte(slots / 2)
	if leaf {
		n.data[0] = 1
		for i := 0; i < slots; i++ {
			n.setChild(i, types.PoisonPage)
		}
	}
}

// truncate shrinks the node to c entries and clears every slot past them.
func (n node) truncate(c, slots int) {
	filler := types.NilPage
	if n.leaf() {
		filler = types.PoisonPage
	}
	for i := c; i < slots; i++ {
		n.setEntry(i, Entry{})
		if i > c {
			n.setChild(i, filler)
		}
	}
	n.setCount(c)
}

// search returns the first position whose key is >= k, and whether it is k.
func (n node) search(k Key) (int, bool) {
	lo, hi := 0, n.count()
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if n.key(mid) < k {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < n.count() && n.key(lo) == k
}

func (n node) String() string {
	kind := "internal"
	if n.leaf() {
		kind = "leaf"
	}
	return fmt.Sprintf("node#%d(%s, n=%d)", n.idx, kind, n.count())
}
