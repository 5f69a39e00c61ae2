package checkpoint

import (
	"BTreeDB/types"
	"sync"

	"go.uber.org/zap"
)

// Syncer is the part of a page store the checkpoint manager flushes.
type Syncer interface {
	Sync() error
}

// CheckpointManager implements the flush-on-checkpoint durability policy:
// after every `every` applied mutations the store is synced and a record of
// the durable state is written next to it.
type CheckpointManager struct {
	checkpointPath string
	syncer         Syncer
	every          uint64
	pending        uint64 // mutations since the last checkpoint
	total          uint64
	sequence       uint64
	log            *zap.Logger
	mu             sync.RWMutex
}

// Checkpoint describes the last durable state of a store
type Checkpoint struct {
	Sequence  uint64          `json:"sequence"`
	Root      types.PageIndex `json:"root"`
	Mutations uint64          `json:"mutations"` // mutations applied when the checkpoint was taken
	Timestamp int64           `json:"timestamp"` // only informational
}
