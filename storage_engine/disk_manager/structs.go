package diskmanager

import (
	"BTreeDB/storage_engine/bufferpool"
	"BTreeDB/types"
	"os"

	"go.uber.org/zap"
)

const (
	HeaderFileName = "hdr.bin"
	IndexFileName  = "idx.bin"
)

// ############################################# OPTIONS #############################################

// SyncPolicy decides when page writes reach stable storage.
type SyncPolicy int

const (
	// SyncNone leaves flushing to the OS (mapping writeback / page cache);
	// data is forced out only by Sync and Close.
	SyncNone SyncPolicy = iota
	// SyncOnWrite flushes every written page and header change before returning.
	SyncOnWrite
)

func (p SyncPolicy) String() string {
	switch p {
	case SyncNone:
		return "none"
	case SyncOnWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Options configure a persistent page store.
type Options struct {
	Dir string
	// Capacity is the live page ceiling used when a fresh store is created.
	// An existing store keeps the ceiling recorded in its superblock.
	Capacity uint32
	Sync     SyncPolicy
	// CacheBytes bounds the FileStore page cache.
	CacheBytes int64
	Logger     *zap.Logger
}

func DefaultOptions(dir string) Options {
	return Options{
		Dir:        dir,
		Capacity:   types.DefaultCapacity,
		Sync:       SyncNone,
		CacheBytes: 64 << 20,
		Logger:     zap.NewNop(),
	}
}

// ############################################# HEADER #############################################

// header is the allocator state shared by both persistent stores:
// superblock + free bitmap living in one HeaderFileSize region.
type header struct {
	region []byte
	sb     Superblock
	free   *freeMap
	// page slots addressable by this store (capacity + reserved slot 0)
	limit int64
}

// ############################################# STORES #############################################

// MmapStore keeps the header and the page array memory mapped. The page
// array is mapped as two halves; bit 19 of a page index picks the half.
type MmapStore struct {
	opts     Options
	log      *zap.Logger
	hdrFile  *os.File
	idxFile  *os.File
	hdr      *header
	segments [2][]byte
	closed   bool
}

// FileStore serves the same on-disk format through ReadAt/WriteAt with a
// page cache in front of the index file. Writes are write-through.
type FileStore struct {
	opts    Options
	log     *zap.Logger
	hdrFile *os.File
	idxFile *os.File
	hdr     *header
	words   []uint64 // backing storage of hdr.region, keeps it 8-byte aligned
	cache   *bufferpool.BufferPool
	closed  bool
}
