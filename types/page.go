package types

const (
	PageSize       = 4096 // 4KB page
	PageHeaderSize = 8    // length (4B) + index (4B)
	PayloadSize    = PageSize - PageHeaderSize

	// page indexes are 20 bits wide; bit 19 selects one of the two halves
	// of the page array and the low 19 bits the page inside that half.
	IndexBits    = 20
	MaxPageSlots = 1 << IndexBits
	SegmentShift = 19
	SegmentPages = 1 << SegmentShift
	SegmentMask  = SegmentPages - 1

	// DefaultCapacity is the live page ceiling of a fresh store (~10^6 nodes).
	DefaultCapacity = 1000 * 1000
)

// PageIndex identifies one page slot of a page store.
type PageIndex uint32

const (
	// NilPage is slot 0. It is never handed out and doubles as "no page".
	NilPage PageIndex = 0

	// PoisonPage fills child slots that must never be followed (leaf entries).
	// It lies outside the 20-bit index space, so resolving it always fails.
	PoisonPage PageIndex = 0xDEADBEEF
)

// Valid reports whether idx can address a page slot at all.
func (idx PageIndex) Valid() bool {
	return idx != NilPage && uint32(idx) < MaxPageSlots
}

// Segment returns the half of the page array holding idx.
func (idx PageIndex) Segment() int {
	return int(uint32(idx)>>SegmentShift) & 1
}

// Offset returns the page position of idx inside its half.
func (idx PageIndex) Offset() int {
	return int(uint32(idx) & SegmentMask)
}
