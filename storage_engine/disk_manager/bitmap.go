package diskmanager

import (
	"BTreeDB/types"
	"unsafe"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
)

// freeMap is the free-page bitmap. It works in place over the header
// region (the mapping itself for MmapStore, a heap copy for FileStore):
// bit i set means page slot i is in use. Slot 0 is permanently reserved.
type freeMap struct {
	raw  []byte
	bits *bitset.BitSet
}

// newFreeMap wraps a BitmapSize byte region. The region must be 8-byte aligned.
func newFreeMap(raw []byte) *freeMap {
	words := unsafe.Slice((*uint64)(unsafe.Pointer(&raw[0])), len(raw)/8)
	return &freeMap{raw: raw, bits: bitset.From(words)}
}

// reset marks every slot free except the reserved one.
func (m *freeMap) reset() {
	clear(m.raw)
	m.bits.Set(uint(types.NilPage))
}

// firstFree returns the lowest clear slot below limit.
func (m *freeMap) firstFree(limit int64) (types.PageIndex, bool) {
	i, ok := m.bits.NextClear(1)
	if !ok || int64(i) >= limit {
		return types.NilPage, false
	}
	return types.PageIndex(i), true
}

func (m *freeMap) inUse(idx types.PageIndex) bool {
	return m.bits.Test(uint(idx))
}

func (m *freeMap) mark(idx types.PageIndex) {
	m.bits.Set(uint(idx))
}

func (m *freeMap) unmark(idx types.PageIndex) {
	m.bits.Clear(uint(idx))
}

// word returns the byte offset (inside the bitmap) and bytes of the 64-bit
// word holding idx, so a single changed word can be written back.
func (m *freeMap) word(idx types.PageIndex) (int, []byte) {
	off := int(idx/64) * 8
	return off, m.raw[off : off+8]
}

func (m *freeMap) checksum() uint64 {
	return xxhash.Sum64(m.raw)
}

func (m *freeMap) used() uint {
	return m.bits.Count()
}
