package bufferpool

import (
	"bytes"
	"testing"

	"BTreeDB/types"
)

func TestBufferPoolPutFetch(t *testing.T) {
	bp, err := NewBufferPool(1 << 20)
	if err != nil {
		t.Fatalf("NewBufferPool: %v", err)
	}
	defer bp.Close()

	payload := bytes.Repeat([]byte{0xab}, types.PayloadSize)
	bp.PutPage(7, payload)

	got, ok := bp.FetchPage(7)
	if !ok {
		t.Skip("page rejected by admission policy")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("fetched payload differs from stored one")
	}

	// the pool hands out copies
	got[0] = 0
	again, ok := bp.FetchPage(7)
	if ok && again[0] != 0xab {
		t.Fatalf("cached bytes changed through a fetched copy")
	}
}

func TestBufferPoolOverwriteAndEvict(t *testing.T) {
	bp, err := NewBufferPool(1 << 20)
	if err != nil {
		t.Fatalf("NewBufferPool: %v", err)
	}
	defer bp.Close()

	bp.PutPage(3, bytes.Repeat([]byte{1}, 64))
	bp.PutPage(3, bytes.Repeat([]byte{2}, 64))
	if got, ok := bp.FetchPage(3); ok && got[0] != 2 {
		t.Fatalf("stale page returned after overwrite: %d", got[0])
	}

	bp.EvictPage(3)
	if _, ok := bp.FetchPage(3); ok {
		t.Fatalf("evicted page still cached")
	}

	if _, ok := bp.FetchPage(99); ok {
		t.Fatalf("unexpected hit for unknown page")
	}
	if bp.GetStats().Misses == 0 {
		t.Fatalf("misses not counted")
	}
}

func TestBufferPoolInvalidCapacity(t *testing.T) {
	if _, err := NewBufferPool(0); err == nil {
		t.Fatalf("expected error for zero capacity")
	}
}
