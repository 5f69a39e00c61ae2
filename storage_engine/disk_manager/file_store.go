package diskmanager

import (
	"BTreeDB/storage_engine/bufferpool"
	"BTreeDB/storage_engine/page"
	"BTreeDB/types"
	"io"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

/*
FileStore owns OS file handles and reads/writes raw bytes at page offsets
(ReadAt, WriteAt). The header region lives on the heap and is written back
piecewise: every allocation or free rewrites the superblock plus the one
bitmap word that changed.

Pages pass through the bufferpool on reads. Writes go to the file first and
then refresh the cache, so the file is always authoritative.
*/

// OpenFileStore opens or creates the store in opts.Dir.
func OpenFileStore(opts Options) (*FileStore, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if opts.CacheBytes <= 0 {
		opts.CacheBytes = DefaultOptions(opts.Dir).CacheBytes
	}
	hdrPath, idxPath, err := storePaths(opts.Dir)
	if err != nil {
		return nil, err
	}

	s := &FileStore{opts: opts, log: opts.Logger.Named("filestore")}
	s.hdrFile, err = openSized(hdrPath, HeaderFileSize)
	if err != nil {
		return nil, err
	}

	s.words = make([]uint64, HeaderFileSize/8)
	region := unsafe.Slice((*byte)(unsafe.Pointer(&s.words[0])), HeaderFileSize)
	if _, err := s.hdrFile.ReadAt(region, 0); err != nil && err != io.EOF {
		s.release()
		return nil, errors.Wrapf(err, "failed to read %s", hdrPath)
	}
	fresh := !Superblock(region).Initialized()
	s.hdr, err = loadHeader(region, opts.Capacity, s.log)
	if err != nil {
		s.release()
		return nil, err
	}
	if fresh {
		if err := s.writeAt(s.hdrFile, region, 0); err != nil {
			s.release()
			return nil, err
		}
	}

	s.idxFile, err = openSized(idxPath, indexFileSize(s.hdr.sb.MaxNodeCount()))
	if err != nil {
		s.release()
		return nil, err
	}
	s.cache, err = bufferpool.NewBufferPool(opts.CacheBytes)
	if err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *FileStore) writeAt(f *os.File, b []byte, off int64) error {
	if _, err := f.WriteAt(b, off); err != nil {
		return errors.Wrapf(err, "failed to write %d bytes at %d in %s", len(b), off, f.Name())
	}
	return nil
}

// persistAllocation writes the superblock and the bitmap word holding idx.
func (s *FileStore) persistAllocation(idx types.PageIndex) error {
	off, word := s.hdr.free.word(idx)
	err := multierr.Append(
		s.writeAt(s.hdrFile, s.hdr.sb, 0),
		s.writeAt(s.hdrFile, word, int64(BitmapOffset+off)),
	)
	if err == nil && s.opts.Sync == SyncOnWrite {
		err = multierr.Append(s.hdrFile.Sync(), s.idxFile.Sync())
	}
	return err
}

func (s *FileStore) AllocatePage() (types.PageIndex, []byte, error) {
	if s.closed {
		return types.NilPage, nil, types.ErrClosed
	}
	idx, err := s.hdr.allocate()
	if err != nil {
		return types.NilPage, nil, err
	}

	pg := page.Page(make([]byte, types.PageSize))
	pg.Init(idx)
	if err := s.writeAt(s.idxFile, pg, pageOffset(idx)); err != nil {
		s.hdr.release(idx)
		return types.NilPage, nil, err
	}
	if err := s.persistAllocation(idx); err != nil {
		s.hdr.release(idx)
		// best effort to put the on-disk header back
		s.persistAllocation(idx)
		return types.NilPage, nil, err
	}
	s.cache.PutPage(idx, pg.Payload())
	return idx, make([]byte, types.PayloadSize), nil
}

func (s *FileStore) DeallocatePage(idx types.PageIndex) error {
	if s.closed {
		return types.ErrClosed
	}
	if err := s.hdr.checkAllocated(idx); err != nil {
		return err
	}
	hdr := page.Page(make([]byte, types.PageHeaderSize))
	if _, err := s.idxFile.ReadAt(hdr, pageOffset(idx)); err != nil {
		return errors.Wrapf(err, "failed to read header of page %d", idx)
	}
	if !hdr.Owns(idx) {
		return errors.Wrapf(types.ErrCorruptReference, "page %d header claims slot %d", idx, hdr.Index())
	}
	if err := s.hdr.release(idx); err != nil {
		return err
	}
	s.cache.EvictPage(idx)
	hdr.Release()
	if err := s.writeAt(s.idxFile, hdr, pageOffset(idx)); err != nil {
		return err
	}
	return s.persistAllocation(idx)
}

func (s *FileStore) ReadPage(idx types.PageIndex) ([]byte, error) {
	if s.closed {
		return nil, types.ErrClosed
	}
	if err := s.hdr.checkAllocated(idx); err != nil {
		return nil, err
	}
	if payload, ok := s.cache.FetchPage(idx); ok {
		return payload, nil
	}

	pg := page.Page(make([]byte, types.PageSize))
	if _, err := s.idxFile.ReadAt(pg, pageOffset(idx)); err != nil {
		return nil, errors.Wrapf(err, "failed to read page %d", idx)
	}
	if !pg.Owns(idx) {
		return nil, errors.Wrapf(types.ErrCorruptReference, "page %d header claims slot %d", idx, pg.Index())
	}
	s.cache.PutPage(idx, pg.Payload())
	return pg.Payload(), nil
}

func (s *FileStore) WritePage(idx types.PageIndex, payload []byte) error {
	if s.closed {
		return types.ErrClosed
	}
	if err := checkPayload(payload); err != nil {
		return err
	}
	if err := s.hdr.checkAllocated(idx); err != nil {
		return err
	}
	full := make([]byte, types.PayloadSize)
	copy(full, payload)
	if err := s.writeAt(s.idxFile, full, pageOffset(idx)+page.PayloadOffset); err != nil {
		// the cached copy may no longer match the file
		s.cache.EvictPage(idx)
		return err
	}
	s.cache.PutPage(idx, full)
	if s.opts.Sync == SyncOnWrite {
		return errors.Wrap(s.idxFile.Sync(), "fsync failed")
	}
	return nil
}

func (s *FileStore) RootPage() types.PageIndex {
	return s.hdr.sb.RootNodeIndex()
}

// SetRootPage records the root in the superblock. NilPage clears it.
func (s *FileStore) SetRootPage(idx types.PageIndex) error {
	if s.closed {
		return types.ErrClosed
	}
	if idx != types.NilPage {
		if err := s.hdr.checkAllocated(idx); err != nil {
			return err
		}
	}
	s.hdr.sb.setRootNodeIndex(idx)
	if err := s.writeAt(s.hdrFile, s.hdr.sb, 0); err != nil {
		return err
	}
	if s.opts.Sync == SyncOnWrite {
		return errors.Wrap(s.hdrFile.Sync(), "fsync failed")
	}
	return nil
}

func (s *FileStore) LivePages() uint32 {
	return s.hdr.sb.NodeCount()
}

// Superblock returns a decoded copy of the superblock.
func (s *FileStore) Superblock() SuperblockInfo {
	return s.hdr.sb.Info()
}

// VerifyChecksum compares the stored bitmap checksum with the bitmap.
func (s *FileStore) VerifyChecksum() bool {
	return s.hdr.verifyChecksum()
}

// CacheStats exposes the page cache counters.
func (s *FileStore) CacheStats() bufferpool.BufferPoolStats {
	if s.cache == nil {
		return bufferpool.BufferPoolStats{}
	}
	return s.cache.GetStats()
}

// Sync stamps the bitmap checksum and fsyncs both files.
func (s *FileStore) Sync() error {
	if s.closed {
		return types.ErrClosed
	}
	return s.flush()
}

func (s *FileStore) flush() error {
	s.hdr.stampChecksum()
	if err := s.writeAt(s.hdrFile, s.hdr.sb, 0); err != nil {
		return err
	}
	return errors.Wrap(multierr.Append(s.hdrFile.Sync(), s.idxFile.Sync()), "fsync failed")
}

// Close syncs the store and closes its files. Closing twice is a no-op.
func (s *FileStore) Close() error {
	if s.closed {
		return nil
	}
	err := s.flush()
	s.closed = true
	err = multierr.Append(err, s.release())
	s.log.Debug("file store closed", zap.String("dir", s.opts.Dir))
	return err
}

func (s *FileStore) release() error {
	if s.cache != nil {
		s.cache.Close()
		s.cache = nil
	}
	var err error
	for _, f := range []*os.File{s.idxFile, s.hdrFile} {
		if f != nil {
			err = multierr.Append(err, f.Close())
		}
	}
	return err
}
