package btree

import "BTreeDB/types"

// Pager is the persistence abstraction the tree runs on. A page holds one
// node payload of at most types.PayloadSize bytes.
//
// The tree writes a node back with WritePage before anything reads that
// page again, so implementations may hand out copies (InMemoryPager,
// FileStore) or views they refresh on write.
type Pager interface {
	// AllocatePage returns a fresh, zeroed page. It fails with
	// ErrStorageExhausted when the capacity ceiling is reached.
	AllocatePage() (types.PageIndex, []byte, error)
	// DeallocatePage fails with ErrCorruptReference for a page that is not allocated.
	DeallocatePage(idx types.PageIndex) error
	ReadPage(idx types.PageIndex) ([]byte, error)
	WritePage(idx types.PageIndex, payload []byte) error
	RootPage() types.PageIndex
	SetRootPage(idx types.PageIndex) error
	LivePages() uint32
	Sync() error
	Close() error
}
