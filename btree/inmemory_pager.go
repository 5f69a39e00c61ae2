package btree

import (
	"BTreeDB/storage_engine/page"
	"BTreeDB/types"

	"github.com/pkg/errors"
)

// InMemoryPager keeps whole pages on the heap. It follows the same page
// header and index rules as the persistent stores, so a tree cannot tell
// them apart, but nothing survives Close.
type InMemoryPager struct {
	pages    map[types.PageIndex]page.Page
	free     []types.PageIndex
	nextPage types.PageIndex
	capacity uint32
	root     types.PageIndex
	closed   bool
}

// NewInMemoryPager creates a pager holding at most capacity live pages.
// Zero means the full index space.
func NewInMemoryPager(capacity uint32) *InMemoryPager {
	if capacity == 0 || capacity >= types.MaxPageSlots {
		capacity = types.MaxPageSlots - 1
	}
	return &InMemoryPager{
		pages:    make(map[types.PageIndex]page.Page),
		nextPage: 1,
		capacity: capacity,
	}
}

func (p *InMemoryPager) lookup(pageId types.PageIndex) (page.Page, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if !pageId.Valid() {
		return nil, errors.Wrapf(ErrCorruptReference, "page index %#x out of range", uint32(pageId))
	}
	pg, ok := p.pages[pageId]
	if !ok || !pg.Owns(pageId) {
		return nil, errors.Wrapf(ErrCorruptReference, "page %d not allocated", pageId)
	}
	return pg, nil
}

func (p *InMemoryPager) ReadPage(pageId types.PageIndex) ([]byte, error) {
	pg, err := p.lookup(pageId)
	if err != nil {
		return nil, err
	}
	// Return a copy so the caller cannot modify internal state directly
	// without calling WritePage
	out := make([]byte, types.PayloadSize)
	copy(out, pg.Payload())
	return out, nil
}

func (p *InMemoryPager) WritePage(pageId types.PageIndex, data []byte) error {
	if len(data) > types.PayloadSize {
		return errors.Errorf("data size %d exceeds page payload size %d", len(data), types.PayloadSize)
	}
	pg, err := p.lookup(pageId)
	if err != nil {
		return err
	}
	n := copy(pg.Payload(), data)
	clear(pg.Payload()[n:])
	return nil
}

func (p *InMemoryPager) AllocatePage() (types.PageIndex, []byte, error) {
	if p.closed {
		return types.NilPage, nil, ErrClosed
	}
	if uint32(len(p.pages)) >= p.capacity {
		return types.NilPage, nil, errors.Wrapf(ErrStorageExhausted, "%d pages in use", len(p.pages))
	}

	var id types.PageIndex
	if n := len(p.free); n > 0 {
		id = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		id = p.nextPage
		p.nextPage++
	}

	pg := page.Page(make([]byte, types.PageSize))
	pg.Init(id)
	p.pages[id] = pg
	return id, make([]byte, types.PayloadSize), nil
}

func (p *InMemoryPager) DeallocatePage(pageId types.PageIndex) error {
	pg, err := p.lookup(pageId)
	if err != nil {
		return err
	}
	pg.Release()
	delete(p.pages, pageId)
	p.free = append(p.free, pageId)
	return nil
}

func (p *InMemoryPager) RootPage() types.PageIndex {
	return p.root
}

func (p *InMemoryPager) SetRootPage(pageId types.PageIndex) error {
	if pageId != types.NilPage {
		if _, err := p.lookup(pageId); err != nil {
			return err
		}
	}
	p.root = pageId
	return nil
}

func (p *InMemoryPager) LivePages() uint32 {
	return uint32(len(p.pages))
}

func (p *InMemoryPager) Sync() error {
	if p.closed {
		return ErrClosed
	}
	return nil
}

func (p *InMemoryPager) Close() error {
	if p.closed {
		return nil
	}
	// This helps catch bugs where you might try to access the tree after closing it.
	p.pages = nil
	p.free = nil
	p.closed = true
	return nil
}
