package bufferpool

/*
This file holds helper functions for the bufferpool
*/

// GetStats returns current buffer pool statistics
func (bp *BufferPool) GetStats() BufferPoolStats {
	m := bp.cache.Metrics
	return BufferPoolStats{
		Hits:        m.Hits(),
		Misses:      m.Misses(),
		HitRate:     m.Ratio(),
		KeysAdded:   m.KeysAdded(),
		KeysEvicted: m.KeysEvicted(),
		CostAdded:   m.CostAdded(),
		Capacity:    bp.capacity,
	}
}
