package diskmanager

import (
	"BTreeDB/types"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
Both stores keep the same two files inside Options.Dir:

	hdr.bin   superblock + free bitmap (HeaderFileSize bytes)
	idx.bin   page array, slot i at offset i*PageSize

A store created by one implementation can be reopened by the other.
*/

func (o *Options) normalize() error {
	if o.Dir == "" {
		return errors.Wrap(types.ErrInvalidConfig, "store directory is empty")
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Sync != SyncNone && o.Sync != SyncOnWrite {
		return errors.Wrapf(types.ErrInvalidConfig, "unknown sync policy %d", o.Sync)
	}
	return nil
}

// openSized opens (creating if needed) path and grows it to at least size
// bytes. Growing leaves a sparse, zero-filled tail.
func openSized(path string, size int64) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	if err := ensureSize(f, size); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func ensureSize(f *os.File, size int64) error {
	stat, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", f.Name())
	}
	if stat.Size() < size {
		if err := f.Truncate(size); err != nil {
			return errors.Wrapf(err, "failed to size %s to %d bytes", f.Name(), size)
		}
	}
	return nil
}

func storePaths(dir string) (hdr, idx string, err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", errors.Wrapf(err, "failed to create store directory %s", dir)
	}
	return filepath.Join(dir, HeaderFileName), filepath.Join(dir, IndexFileName), nil
}

// pageOffset is the byte offset of slot idx inside idx.bin.
func pageOffset(idx types.PageIndex) int64 {
	return int64(idx) * types.PageSize
}

func checkPayload(payload []byte) error {
	if len(payload) > types.PayloadSize {
		return errors.Errorf("payload of %d bytes exceeds page payload size %d", len(payload), types.PayloadSize)
	}
	return nil
}
