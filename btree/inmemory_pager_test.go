package btree

import (
	"bytes"
	"testing"

	"BTreeDB/types"

	"github.com/pkg/errors"
)

func TestInMemoryPagerBasicOperations(t *testing.T) {
	pager := NewInMemoryPager(3)
	defer pager.Close()

	pageID, data, err := pager.AllocatePage()
	if err != nil {
		t.Fatalf("Failed to allocate page: %v", err)
	}
	if pageID != 1 {
		t.Errorf("Expected first page ID to be 1, got %d", pageID)
	}
	if len(data) != types.PayloadSize {
		t.Errorf("payload size = %d", len(data))
	}

	copy(data, []byte("Hello, Pager!"))
	if err := pager.WritePage(pageID, data); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}
	readData, err := pager.ReadPage(pageID)
	if err != nil {
		t.Fatalf("Failed to read page: %v", err)
	}
	if !bytes.Equal(data, readData) {
		t.Errorf("Data mismatch: got %q", readData[:13])
	}

	// reads hand out copies
	readData[0] = 'X'
	again, _ := pager.ReadPage(pageID)
	if again[0] != 'H' {
		t.Errorf("page changed without WritePage")
	}

	pager.AllocatePage()
	pager.AllocatePage()
	if _, _, err := pager.AllocatePage(); !errors.Is(err, ErrStorageExhausted) {
		t.Fatalf("expected ErrStorageExhausted, got %v", err)
	}

	if err := pager.DeallocatePage(pageID); err != nil {
		t.Fatalf("Failed to free page: %v", err)
	}
	if err := pager.DeallocatePage(pageID); !errors.Is(err, ErrCorruptReference) {
		t.Fatalf("double free: %v", err)
	}
	for _, bad := range []types.PageIndex{types.NilPage, types.PoisonPage, pageID} {
		if _, err := pager.ReadPage(bad); !errors.Is(err, ErrCorruptReference) {
			t.Errorf("ReadPage(%#x): %v", uint32(bad), err)
		}
	}

	reused, _, err := pager.AllocatePage()
	if err != nil || reused != pageID {
		t.Fatalf("reuse = %d, %v; want %d", reused, err, pageID)
	}
	if pager.LivePages() != 3 {
		t.Fatalf("live pages = %d", pager.LivePages())
	}
	if err := pager.SetRootPage(reused); err != nil || pager.RootPage() != reused {
		t.Fatalf("SetRootPage: %v", err)
	}
	if err := pager.SetRootPage(99); !errors.Is(err, ErrCorruptReference) {
		t.Fatalf("SetRootPage(unallocated): %v", err)
	}

	pager.Close()
	if _, err := pager.ReadPage(reused); !errors.Is(err, ErrClosed) {
		t.Fatalf("read after close: %v", err)
	}
}
