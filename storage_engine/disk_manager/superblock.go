package diskmanager

import (
	"BTreeDB/types"
	"encoding/binary"
)

/*
Header file (hdr.bin) layout

	offset 0     superblock (64 bytes, little endian, 8-byte aligned)
	offset 4K    free-page bitmap, one bit per page slot (2^20 bits = 128K)

Superblock

	| magic u32 | version u32 | length u64 | checksum u64 |
	| node_count u32 | max_node_count u32 | file_count u32 | max_file_count u32 |
	| total_file_size u64 | max_total_file_size u64 |
	| root_node_index u32 | padding u32 |

file_count, max_file_count, total_file_size and max_total_file_size are kept
for a higher level store and are not used by the tree.
*/

const (
	Magic   uint32 = 0xd0d0baba
	Version uint32 = 1

	SuperblockSize = 64
	BitmapOffset   = 4 << 10
	BitmapSize     = types.MaxPageSlots / 8 // 128K
	HeaderFileSize = BitmapOffset + BitmapSize

	DefaultMaxFileCount     = 10000 * 10000
	DefaultMaxTotalFileSize = uint64(4) << 40 // 4T
)

const (
	sbMagic            = 0
	sbVersion          = 4
	sbLength           = 8
	sbChecksum         = 16
	sbNodeCount        = 24
	sbMaxNodeCount     = 28
	sbFileCount        = 32
	sbMaxFileCount     = 36
	sbTotalFileSize    = 40
	sbMaxTotalFileSize = 48
	sbRootNodeIndex    = 56
)

// Superblock is a view over the first SuperblockSize bytes of the header region.
type Superblock []byte

func (sb Superblock) Magic() uint32 { return binary.LittleEndian.Uint32(sb[sbMagic:]) }
func (sb Superblock) Version() uint32 { return binary.LittleEndian.Uint32(sb[sbVersion:]) }
func (sb Superblock) Length() uint64 { return binary.LittleEndian.Uint64(sb[sbLength:]) }
func (sb Superblock) Checksum() uint64 { return binary.LittleEndian.Uint64(sb[sbChecksum:]) }
func (sb Superblock) NodeCount() uint32 { return binary.LittleEndian.Uint32(sb[sbNodeCount:]) }
func (sb Superblock) MaxNodeCount() uint32 { return binary.LittleEndian.Uint32(sb[sbMaxNodeCount:]) }
func (sb Superblock) FileCount() uint32 { return binary.LittleEndian.Uint32(sb[sbFileCount:]) }
func (sb Superblock) MaxFileCount() uint32 { return binary.LittleEndian.Uint32(sb[sbMaxFileCount:]) }

func (sb Superblock) TotalFileSize() uint64 {
	return binary.LittleEndian.Uint64(sb[sbTotalFileSize:])
}

func (sb Superblock) MaxTotalFileSize() uint64 {
	return binary.LittleEndian.Uint64(sb[sbMaxTotalFileSize:])
}

func (sb Superblock) RootNodeIndex() types.PageIndex {
	return types.PageIndex(binary.LittleEndian.Uint32(sb[sbRootNodeIndex:]))
}

func (sb Superblock) setNodeCount(n uint32) {
	binary.LittleEndian.PutUint32(sb[sbNodeCount:], n)
}

func (sb Superblock) setChecksum(sum uint64) {
	binary.LittleEndian.PutUint64(sb[sbChecksum:], sum)
}

func (sb Superblock) setRootNodeIndex(idx types.PageIndex) {
	binary.LittleEndian.PutUint32(sb[sbRootNodeIndex:], uint32(idx))
}

// Initialized reports whether the region carries a superblock.
func (sb Superblock) Initialized() bool {
	return sb.Magic() == Magic
}

// format writes a fresh superblock for a store holding up to capacity live pages.
func (sb Superblock) format(capacity uint32) {
	clear(sb[:SuperblockSize])
	binary.LittleEndian.PutUint32(sb[sbMagic:], Magic)
	binary.LittleEndian.PutUint32(sb[sbVersion:], Version)
	binary.LittleEndian.PutUint64(sb[sbLength:], uint64(HeaderFileSize)+uint64(indexFileSize(capacity)))
	binary.LittleEndian.PutUint32(sb[sbMaxNodeCount:], capacity)
	binary.LittleEndian.PutUint32(sb[sbMaxFileCount:], DefaultMaxFileCount)
	binary.LittleEndian.PutUint64(sb[sbMaxTotalFileSize:], DefaultMaxTotalFileSize)
}

// SuperblockInfo is a decoded copy of the superblock, for tools and logs.
type SuperblockInfo struct {
	Magic            uint32
	Version          uint32
	Length           uint64
	Checksum         uint64
	NodeCount        uint32
	MaxNodeCount     uint32
	FileCount        uint32
	MaxFileCount     uint32
	TotalFileSize    uint64
	MaxTotalFileSize uint64
	RootNodeIndex    types.PageIndex
}

func (sb Superblock) Info() SuperblockInfo {
	return SuperblockInfo{
		Magic:            sb.Magic(),
		Version:          sb.Version(),
		Length:           sb.Length(),
		Checksum:         sb.Checksum(),
		NodeCount:        sb.NodeCount(),
		MaxNodeCount:     sb.MaxNodeCount(),
		FileCount:        sb.FileCount(),
		MaxFileCount:     sb.MaxFileCount(),
		TotalFileSize:    sb.TotalFileSize(),
		MaxTotalFileSize: sb.MaxTotalFileSize(),
		RootNodeIndex:    sb.RootNodeIndex(),
	}
}

// slots returns how many page slots a store of the given capacity addresses:
// every live page plus the reserved slot 0.
func slots(capacity uint32) int64 {
	return int64(capacity) + 1
}

// indexFileSize is the byte size of the page array for capacity live pages.
func indexFileSize(capacity uint32) int64 {
	return slots(capacity) * types.PageSize
}

// segmentSizes splits the page array into its two halves.
func segmentSizes(capacity uint32) (first, second int64) {
	n := slots(capacity)
	if n <= types.SegmentPages {
		return n * types.PageSize, 0
	}
	return types.SegmentPages * types.PageSize, (n - types.SegmentPages) * types.PageSize
}
