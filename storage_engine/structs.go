package storageengine

import (
	"BTreeDB/btree"
	checkpoint "BTreeDB/storage_engine/checkpoint_manager"
	diskmanager "BTreeDB/storage_engine/disk_manager"

	"go.uber.org/zap"
)

// StoreKind selects the page store behind the tree.
type StoreKind string

const (
	StoreMemory StoreKind = "mem"
	StoreMmap   StoreKind = "mmap"
	StoreFile   StoreKind = "file"
)

type Config struct {
	Dir      string
	Store    StoreKind
	Capacity uint32
	Sync     diskmanager.SyncPolicy
	// CacheBytes bounds the page cache of the file store.
	CacheBytes int64
	// CheckpointEvery > 0 syncs the store and records a checkpoint after
	// that many mutations. Ignored for the in-memory store.
	CheckpointEvery uint64
	Degree          int
	Logger          *zap.Logger
}

// StorageEngine wires a page store, the tree on top of it and the
// checkpoint manager together.
type StorageEngine struct {
	Tree              *btree.BTree
	Pager             btree.Pager
	CheckpointManager *checkpoint.CheckpointManager

	cfg Config
	log *zap.Logger
}
