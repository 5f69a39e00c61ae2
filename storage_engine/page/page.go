package page

import (
	"BTreeDB/types"
	"encoding/binary"
)

/*
Every page slot of a page store starts with a small header followed by the
raw node payload:

	| length (4B) | index (4B) | payload (PageSize - 8) |

length is always PageSize for an allocated page and index is the slot the
page lives in. Both are cleared when the page is freed, so a page whose
header does not match its slot is either free or corrupt.

The header is the authoritative identity of a page: a page index and the
physical page are tied together only through it.
*/

const (
	lengthOffset  = 0
	indexOffset   = 4
	PayloadOffset = types.PageHeaderSize
)

// Page is a view over one PageSize slot.
type Page []byte

func (p Page) Length() uint32 {
	return binary.LittleEndian.Uint32(p[lengthOffset:])
}

func (p Page) Index() types.PageIndex {
	return types.PageIndex(binary.LittleEndian.Uint32(p[indexOffset:]))
}

// Payload returns the node area of the page.
func (p Page) Payload() []byte {
	return p[PayloadOffset:types.PageSize]
}

// Init zero-fills the page and stamps its header for slot idx.
func (p Page) Init(idx types.PageIndex) {
	clear(p[:types.PageSize])
	binary.LittleEndian.PutUint32(p[lengthOffset:], types.PageSize)
	binary.LittleEndian.PutUint32(p[indexOffset:], uint32(idx))
}

// Release zeroes the identity fields of the header.
func (p Page) Release() {
	binary.LittleEndian.PutUint32(p[lengthOffset:], 0)
	binary.LittleEndian.PutUint32(p[indexOffset:], 0)
}

// Owns reports whether the header identifies an allocated page living in slot idx.
func (p Page) Owns(idx types.PageIndex) bool {
	return len(p) >= types.PageHeaderSize && p.Length() == types.PageSize && p.Index() == idx
}
