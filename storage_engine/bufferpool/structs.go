package bufferpool

import (
	"github.com/dgraph-io/ristretto/v2"
)

// ############################################# BUFFER POOL #############################################

// BufferPool caches page payloads keyed by page index. It sits in front of a
// page file and never owns data: every write reaches the file first, so an
// eviction can never lose anything.
type BufferPool struct {
	cache    *ristretto.Cache[uint64, []byte]
	capacity int64
}

// BufferPoolStats is a snapshot of the cache counters.
type BufferPoolStats struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysAdded   uint64
	KeysEvicted uint64
	CostAdded   uint64
	Capacity    int64
}
