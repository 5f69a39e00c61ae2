package diskmanager

import (
	"BTreeDB/types"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// loadHeader wraps a HeaderFileSize region. A region without the magic
// value gets a fresh superblock and bitmap; otherwise the existing
// superblock is trusted as is. This magic check is the only recovery step.
func loadHeader(region []byte, capacity uint32, log *zap.Logger) (*header, error) {
	if len(region) < HeaderFileSize {
		return nil, errors.Wrapf(types.ErrCorruptReference, "header region is %d bytes, want %d", len(region), HeaderFileSize)
	}
	h := &header{
		region: region,
		sb:     Superblock(region[:SuperblockSize]),
		free:   newFreeMap(region[BitmapOffset:HeaderFileSize]),
	}

	if !h.sb.Initialized() {
		if err := validateCapacity(capacity); err != nil {
			return nil, err
		}
		h.sb.format(capacity)
		h.free.reset()
		h.stampChecksum()
		log.Info("new page store created",
			zap.Uint32("capacity", capacity),
			zap.String("pageArray", humanize.IBytes(uint64(indexFileSize(capacity)))))
	} else {
		if h.sb.Version() != Version {
			return nil, errors.Wrapf(types.ErrCorruptReference, "unsupported store version %d", h.sb.Version())
		}
		if err := validateCapacity(h.sb.MaxNodeCount()); err != nil {
			return nil, errors.Wrap(types.ErrCorruptReference, err.Error())
		}
		if capacity != 0 && capacity != h.sb.MaxNodeCount() {
			log.Warn("configured capacity ignored, using the stored one",
				zap.Uint32("configured", capacity),
				zap.Uint32("stored", h.sb.MaxNodeCount()))
		}
		if sum := h.sb.Checksum(); sum != 0 && sum != h.free.checksum() {
			log.Warn("bitmap checksum mismatch, store was not closed cleanly",
				zap.Uint64("stored", sum), zap.Uint64("actual", h.free.checksum()))
		}
		log.Info("existing page store loaded",
			zap.Uint32("nodes", h.sb.NodeCount()),
			zap.Uint32("capacity", h.sb.MaxNodeCount()),
			zap.Uint32("root", uint32(h.sb.RootNodeIndex())))
	}
	h.limit = slots(h.sb.MaxNodeCount())
	return h, nil
}

func validateCapacity(capacity uint32) error {
	if capacity == 0 || slots(capacity) > types.MaxPageSlots {
		return errors.Wrapf(types.ErrInvalidConfig, "capacity %d outside [1, %d]", capacity, types.MaxPageSlots-1)
	}
	return nil
}

// allocate reserves the first free slot. Hitting the live page ceiling and
// running out of bitmap slots are the same condition for callers.
func (h *header) allocate() (types.PageIndex, error) {
	count := h.sb.NodeCount()
	if count >= h.sb.MaxNodeCount() {
		return types.NilPage, errors.Wrapf(types.ErrStorageExhausted, "node count %d reached ceiling %d", count, h.sb.MaxNodeCount())
	}
	idx, ok := h.free.firstFree(h.limit)
	if !ok {
		return types.NilPage, errors.Wrapf(types.ErrStorageExhausted, "no free slot below %d", h.limit)
	}
	h.free.mark(idx)
	h.sb.setNodeCount(count + 1)
	return idx, nil
}

// release returns an allocated slot to the bitmap.
func (h *header) release(idx types.PageIndex) error {
	if err := h.check(idx); err != nil {
		return err
	}
	if !h.free.inUse(idx) {
		return errors.Wrapf(types.ErrCorruptReference, "page %d is not allocated", idx)
	}
	h.free.unmark(idx)
	h.sb.setNodeCount(h.sb.NodeCount() - 1)
	return nil
}

// check validates that idx addresses a page slot of this store.
func (h *header) check(idx types.PageIndex) error {
	if idx == types.NilPage {
		return errors.Wrap(types.ErrCorruptReference, "page 0 is reserved")
	}
	if !idx.Valid() || int64(idx) >= h.limit {
		return errors.Wrapf(types.ErrCorruptReference, "page index %#x out of range [1, %d)", uint32(idx), h.limit)
	}
	return nil
}

// checkAllocated is check plus "the bitmap says the slot is in use".
func (h *header) checkAllocated(idx types.PageIndex) error {
	if err := h.check(idx); err != nil {
		return err
	}
	if !h.free.inUse(idx) {
		return errors.Wrapf(types.ErrCorruptReference, "page %d is free", idx)
	}
	return nil
}

func (h *header) stampChecksum() {
	h.sb.setChecksum(h.free.checksum())
}

// VerifyChecksum reports whether the stored bitmap checksum matches the
// bitmap. A zero checksum (never stamped) verifies.
func (h *header) verifyChecksum() bool {
	sum := h.sb.Checksum()
	return sum == 0 || sum == h.free.checksum()
}
