package bufferpool

import (
	"BTreeDB/types"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
)

/*
This file is the main file of the bufferpool.
The pool is a ristretto cache of page payloads. Values are copied on the way
in and on the way out, so callers own whatever they get back and the cached
bytes only change through Put.

Admission in ristretto is asynchronous; Put waits for the set buffer to drain
so a Get right after a Put observes it (or observes a miss if the admission
policy rejected the page, which is fine because the file is authoritative).
*/

// NewBufferPool creates a pool bounded to capacity bytes of payload.
func NewBufferPool(capacity int64) (*BufferPool, error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(types.ErrInvalidConfig, "buffer pool capacity %d", capacity)
	}
	pages := capacity / types.PayloadSize
	if pages < 1 {
		pages = 1
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
		NumCounters:        pages * 10,
		MaxCost:            capacity,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create page cache")
	}
	return &BufferPool{cache: cache, capacity: capacity}, nil
}

// FetchPage returns a copy of the cached payload of idx.
func (bp *BufferPool) FetchPage(idx types.PageIndex) ([]byte, bool) {
	cached, ok := bp.cache.Get(uint64(idx))
	if !ok {
		return nil, false
	}
	out := make([]byte, len(cached))
	copy(out, cached)
	return out, true
}

// PutPage caches a copy of payload as the current content of idx.
func (bp *BufferPool) PutPage(idx types.PageIndex, payload []byte) {
	stored := make([]byte, len(payload))
	copy(stored, payload)
	bp.cache.Set(uint64(idx), stored, int64(len(stored)))
	bp.cache.Wait()
}

// EvictPage drops idx from the cache, used when its slot is freed.
func (bp *BufferPool) EvictPage(idx types.PageIndex) {
	bp.cache.Del(uint64(idx))
	bp.cache.Wait()
}

// Close releases the cache goroutines. The pool must not be used afterwards.
func (bp *BufferPool) Close() {
	bp.cache.Close()
}
