package diskmanager

import (
	"BTreeDB/storage_engine/page"
	"BTreeDB/types"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

/*
MmapStore maps hdr.bin once and idx.bin as two halves. A page index is
resolved by taking bit 19 as the half and the low 19 bits as the page inside
it. The second half is mapped only when the capacity needs it.

Reads copy out of the mapping and writes copy into it, so callers never hold
a view into mapped memory.
*/

// OpenMmapStore opens or creates the store in opts.Dir.
func OpenMmapStore(opts Options) (*MmapStore, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	hdrPath, idxPath, err := storePaths(opts.Dir)
	if err != nil {
		return nil, err
	}

	s := &MmapStore{opts: opts, log: opts.Logger.Named("mmapstore")}

	s.hdrFile, err = openSized(hdrPath, HeaderFileSize)
	if err != nil {
		return nil, err
	}
	region, err := unix.Mmap(int(s.hdrFile.Fd()), 0, HeaderFileSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		s.hdrFile.Close()
		return nil, errors.Wrapf(err, "failed to map %s", hdrPath)
	}
	s.hdr, err = loadHeader(region, opts.Capacity, s.log)
	if err != nil {
		unix.Munmap(region)
		s.hdrFile.Close()
		return nil, err
	}

	capacity := s.hdr.sb.MaxNodeCount()
	s.idxFile, err = openSized(idxPath, indexFileSize(capacity))
	if err != nil {
		s.release()
		return nil, err
	}
	if err := s.mapSegments(capacity); err != nil {
		s.release()
		return nil, err
	}
	// the stored checksum stays as found so VerifyChecksum can report an
	// unclean shutdown
	if err := s.msyncAll(); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *MmapStore) mapSegments(capacity uint32) error {
	first, second := segmentSizes(capacity)
	fd := int(s.idxFile.Fd())
	prot := unix.PROT_READ | unix.PROT_WRITE

	seg, err := unix.Mmap(fd, 0, int(first), prot, unix.MAP_SHARED)
	if err != nil {
		return errors.Wrap(err, "failed to map first page segment")
	}
	s.segments[0] = seg
	if second > 0 {
		seg, err = unix.Mmap(fd, types.SegmentPages*types.PageSize, int(second), prot, unix.MAP_SHARED)
		if err != nil {
			return errors.Wrap(err, "failed to map second page segment")
		}
		s.segments[1] = seg
	}
	s.log.Debug("page array mapped", zap.Int64("first", first), zap.Int64("second", second))
	return nil
}

// locate resolves idx to its PageSize slot inside the mapping.
func (s *MmapStore) locate(idx types.PageIndex) (page.Page, error) {
	seg := s.segments[idx.Segment()]
	off := idx.Offset() * types.PageSize
	if off+types.PageSize > len(seg) {
		return nil, errors.Wrapf(types.ErrCorruptReference, "page %d is outside the mapped array", idx)
	}
	return page.Page(seg[off : off+types.PageSize]), nil
}

// resolve is locate for a page that must be allocated.
func (s *MmapStore) resolve(idx types.PageIndex) (page.Page, error) {
	if s.closed {
		return nil, types.ErrClosed
	}
	if err := s.hdr.checkAllocated(idx); err != nil {
		return nil, err
	}
	pg, err := s.locate(idx)
	if err != nil {
		return nil, err
	}
	if !pg.Owns(idx) {
		return nil, errors.Wrapf(types.ErrCorruptReference, "page %d header claims slot %d", idx, pg.Index())
	}
	return pg, nil
}

func (s *MmapStore) AllocatePage() (types.PageIndex, []byte, error) {
	if s.closed {
		return types.NilPage, nil, types.ErrClosed
	}
	idx, err := s.hdr.allocate()
	if err != nil {
		return types.NilPage, nil, err
	}
	pg, err := s.locate(idx)
	if err != nil {
		s.hdr.release(idx)
		return types.NilPage, nil, err
	}
	pg.Init(idx)
	if s.opts.Sync == SyncOnWrite {
		if err := multierr.Append(s.syncPage(idx), s.flushBitmapWord(idx)); err != nil {
			return types.NilPage, nil, err
		}
	}
	return idx, make([]byte, types.PayloadSize), nil
}

func (s *MmapStore) DeallocatePage(idx types.PageIndex) error {
	pg, err := s.resolve(idx)
	if err != nil {
		return err
	}
	if err := s.hdr.release(idx); err != nil {
		return err
	}
	pg.Release()
	if s.opts.Sync == SyncOnWrite {
		return multierr.Append(s.syncPage(idx), s.flushBitmapWord(idx))
	}
	return nil
}

func (s *MmapStore) ReadPage(idx types.PageIndex) ([]byte, error) {
	pg, err := s.resolve(idx)
	if err != nil {
		return nil, err
	}
	out := make([]byte, types.PayloadSize)
	copy(out, pg.Payload())
	return out, nil
}

func (s *MmapStore) WritePage(idx types.PageIndex, payload []byte) error {
	if err := checkPayload(payload); err != nil {
		return err
	}
	pg, err := s.resolve(idx)
	if err != nil {
		return err
	}
	n := copy(pg.Payload(), payload)
	clear(pg.Payload()[n:])
	if s.opts.Sync == SyncOnWrite {
		return s.syncPage(idx)
	}
	return nil
}

func (s *MmapStore) RootPage() types.PageIndex {
	return s.hdr.sb.RootNodeIndex()
}

// SetRootPage records the root in the superblock. NilPage clears it.
func (s *MmapStore) SetRootPage(idx types.PageIndex) error {
	if s.closed {
		return types.ErrClosed
	}
	if idx != types.NilPage {
		if err := s.hdr.checkAllocated(idx); err != nil {
			return err
		}
	}
	s.hdr.sb.setRootNodeIndex(idx)
	if s.opts.Sync == SyncOnWrite {
		return msyncRange(s.hdr.region, 0, SuperblockSize)
	}
	return nil
}

func (s *MmapStore) LivePages() uint32 {
	return s.hdr.sb.NodeCount()
}

// Superblock returns a decoded copy of the superblock.
func (s *MmapStore) Superblock() SuperblockInfo {
	return s.hdr.sb.Info()
}

// VerifyChecksum compares the stored bitmap checksum with the bitmap.
func (s *MmapStore) VerifyChecksum() bool {
	if s.closed {
		return false
	}
	return s.hdr.verifyChecksum()
}

// Sync stamps the bitmap checksum and forces both mappings to disk.
func (s *MmapStore) Sync() error {
	if s.closed {
		return types.ErrClosed
	}
	return s.flushHeader()
}

func (s *MmapStore) flushHeader() error {
	s.hdr.stampChecksum()
	return s.msyncAll()
}

func (s *MmapStore) msyncAll() error {
	err := unix.Msync(s.hdr.region, unix.MS_SYNC)
	for _, seg := range s.segments {
		if seg != nil {
			err = multierr.Append(err, unix.Msync(seg, unix.MS_SYNC))
		}
	}
	return errors.Wrap(err, "msync failed")
}

func (s *MmapStore) flushBitmapWord(idx types.PageIndex) error {
	off, _ := s.hdr.free.word(idx)
	return multierr.Append(
		msyncRange(s.hdr.region, 0, SuperblockSize),
		msyncRange(s.hdr.region, BitmapOffset+off, 8),
	)
}

// Close syncs and unmaps the store. Closing twice is a no-op.
func (s *MmapStore) Close() error {
	if s.closed {
		return nil
	}
	err := s.flushHeader()
	s.closed = true
	// keep the superblock readable once the mapping is gone
	s.hdr.sb = append(Superblock(nil), s.hdr.sb...)
	err = multierr.Append(err, s.release())
	s.log.Debug("mmap store closed", zap.String("dir", s.opts.Dir))
	return err
}

func (s *MmapStore) release() error {
	var err error
	for i, seg := range s.segments {
		if seg != nil {
			err = multierr.Append(err, unix.Munmap(seg))
			s.segments[i] = nil
		}
	}
	if s.hdr != nil {
		err = multierr.Append(err, unix.Munmap(s.hdr.region))
		s.hdr.region = nil
	}
	for _, f := range []*os.File{s.idxFile, s.hdrFile} {
		if f != nil {
			err = multierr.Append(err, f.Close())
		}
	}
	return err
}

func (s *MmapStore) syncPage(idx types.PageIndex) error {
	return msyncRange(s.segments[idx.Segment()], idx.Offset()*types.PageSize, types.PageSize)
}

// msyncRange flushes b[off:off+n], widened to OS page boundaries. b must
// start on an OS page boundary, which every mapping does.
func msyncRange(b []byte, off, n int) error {
	ps := os.Getpagesize()
	start := off &^ (ps - 1)
	end := min(off+n, len(b))
	if err := unix.Msync(b[start:end], unix.MS_SYNC); err != nil {
		return errors.Wrap(err, "msync failed")
	}
	return nil
}
