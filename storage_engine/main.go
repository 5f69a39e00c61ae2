package storageengine

import (
	"BTreeDB/btree"
	"BTreeDB/storage_engine/bufferpool"
	checkpoint "BTreeDB/storage_engine/checkpoint_manager"
	diskmanager "BTreeDB/storage_engine/disk_manager"
	"BTreeDB/types"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

/*
The main file of the storage engine. It opens the page store selected by
Config.Store, loads (or creates) the tree stored in it and, for persistent
stores, attaches the checkpoint manager so mutations are flushed every
Config.CheckpointEvery operations.
*/

func DefaultConfig(dir string) Config {
	return Config{
		Dir:        dir,
		Store:      StoreMmap,
		Capacity:   types.DefaultCapacity,
		Sync:       diskmanager.SyncNone,
		CacheBytes: diskmanager.DefaultOptions(dir).CacheBytes,
		Logger:     zap.NewNop(),
	}
}

func NewStorageEngine(cfg Config) (*StorageEngine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	se := &StorageEngine{cfg: cfg, log: cfg.Logger}

	pager, err := openPager(cfg)
	if err != nil {
		return nil, err
	}
	se.Pager = pager

	treeCfg := btree.Config{Degree: cfg.Degree, Logger: cfg.Logger}
	if cfg.Store != StoreMemory && cfg.CheckpointEvery > 0 {
		se.CheckpointManager, err = checkpoint.NewCheckpointManager(cfg.Dir, pager, cfg.CheckpointEvery, cfg.Logger)
		if err != nil {
			pager.Close()
			return nil, err
		}
		treeCfg.Checkpointer = se.CheckpointManager
	}

	se.Tree, err = btree.NewBTree(pager, treeCfg)
	if err != nil {
		pager.Close()
		return nil, errors.Wrap(err, "failed to open tree")
	}
	se.log.Info("storage engine ready",
		zap.String("store", string(cfg.Store)),
		zap.String("dir", cfg.Dir),
		zap.Int("degree", se.Tree.Degree()),
		zap.Uint32("nodes", pager.LivePages()))
	return se, nil
}

func openPager(cfg Config) (btree.Pager, error) {
	opts := diskmanager.Options{
		Dir:        cfg.Dir,
		Capacity:   cfg.Capacity,
		Sync:       cfg.Sync,
		CacheBytes: cfg.CacheBytes,
		Logger:     cfg.Logger,
	}
	switch cfg.Store {
	case StoreMemory:
		return btree.NewInMemoryPager(cfg.Capacity), nil
	case StoreMmap, "":
		return diskmanager.OpenMmapStore(opts)
	case StoreFile:
		return diskmanager.OpenFileStore(opts)
	default:
		return nil, errors.Wrapf(types.ErrInvalidConfig, "unknown store %q", cfg.Store)
	}
}

// StoreInfo returns the superblock of a persistent store.
func (se *StorageEngine) StoreInfo() (diskmanager.SuperblockInfo, bool) {
	type superblocker interface {
		Superblock() diskmanager.SuperblockInfo
	}
	if s, ok := se.Pager.(superblocker); ok {
		return s.Superblock(), true
	}
	return diskmanager.SuperblockInfo{}, false
}

// CacheStats returns the page cache counters of the file store.
func (se *StorageEngine) CacheStats() (bufferpool.BufferPoolStats, bool) {
	if fs, ok := se.Pager.(*diskmanager.FileStore); ok {
		return fs.CacheStats(), true
	}
	return bufferpool.BufferPoolStats{}, false
}

// Checkpoint forces a checkpoint now. Without a checkpoint manager it just
// syncs the store.
func (se *StorageEngine) Checkpoint() error {
	if se.CheckpointManager == nil {
		return se.Pager.Sync()
	}
	return se.CheckpointManager.Checkpoint(se.Tree.Root())
}

// Close takes a final checkpoint when mutations are pending and closes the
// tree and its store.
func (se *StorageEngine) Close() error {
	var err error
	if se.CheckpointManager != nil && se.CheckpointManager.Pending() > 0 {
		err = se.CheckpointManager.Checkpoint(se.Tree.Root())
	}
	err = multierr.Append(err, se.Tree.Close())
	se.log.Info("storage engine closed", zap.String("dir", se.cfg.Dir))
	return err
}
