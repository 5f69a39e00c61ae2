package checkpoint

import (
	"BTreeDB/types"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
This file is the main file of the CheckpointManager.
Stores run with SyncNone leave flushing to the OS; the checkpoint manager
bounds how much work a crash can lose. Every `every` mutations it syncs the
store and then writes checkpoint.json, so the file only ever names a state
that is already on disk.
*/

const FileName = "checkpoint.json"

// NewCheckpointManager creates a manager for the store in dir. every == 0
// disables automatic checkpoints; Checkpoint can still be called directly.
func NewCheckpointManager(dir string, syncer Syncer, every uint64, log *zap.Logger) (*CheckpointManager, error) {
	if syncer == nil {
		return nil, errors.Wrap(types.ErrInvalidConfig, "checkpoint manager needs a syncer")
	}
	if log == nil {
		log = zap.NewNop()
	}
	cm := &CheckpointManager{
		checkpointPath: filepath.Join(dir, FileName),
		syncer:         syncer,
		every:          every,
		log:            log.Named("checkpoint"),
	}
	last, err := cm.LoadCheckpoint()
	if err != nil {
		return nil, err
	}
	cm.sequence = last.Sequence
	cm.total = last.Mutations
	return cm, nil
}

// MutationApplied records one successful mutation and checkpoints when the
// interval is reached. root is the tree root after the mutation.
func (cm *CheckpointManager) MutationApplied(root types.PageIndex) error {
	cm.mu.Lock()
	cm.pending++
	cm.total++
	due := cm.every > 0 && cm.pending >= cm.every
	cm.mu.Unlock()

	if !due {
		return nil
	}
	return cm.Checkpoint(root)
}

// Checkpoint syncs the store and atomically saves a checkpoint record
func (cm *CheckpointManager) Checkpoint(root types.PageIndex) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := cm.syncer.Sync(); err != nil {
		return errors.Wrap(err, "checkpoint sync failed")
	}

	checkpoint := Checkpoint{
		Sequence:  cm.sequence + 1,
		Root:      root,
		Mutations: cm.total,
		Timestamp: time.Now().Unix(),
	}
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal checkpoint")
	}

	// write temp, fsync it, rename over the old record, fsync the directory
	tempPath := cm.checkpointPath + ".tmp"
	if err := writeSynced(tempPath, data); err != nil {
		return err
	}
	if err := os.Rename(tempPath, cm.checkpointPath); err != nil {
		return errors.Wrap(err, "failed to rename checkpoint")
	}
	if dir, err := os.Open(filepath.Dir(cm.checkpointPath)); err == nil {
		dir.Sync()
		dir.Close()
	}

	cm.sequence = checkpoint.Sequence
	cm.pending = 0
	cm.log.Debug("checkpoint saved",
		zap.Uint64("sequence", checkpoint.Sequence),
		zap.Uint32("root", uint32(root)),
		zap.Uint64("mutations", checkpoint.Mutations))
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open temp checkpoint")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to write temp checkpoint")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to sync temp checkpoint")
	}
	return errors.Wrap(f.Close(), "failed to close temp checkpoint")
}

// LoadCheckpoint loads the last checkpoint. A missing or unreadable record
// yields the zero Checkpoint.
func (cm *CheckpointManager) LoadCheckpoint() (Checkpoint, error) {
	data, err := os.ReadFile(cm.checkpointPath)
	if os.IsNotExist(err) {
		return Checkpoint{}, nil
	}
	if err != nil {
		return Checkpoint{}, errors.Wrap(err, "failed to read checkpoint")
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		cm.log.Warn("checkpoint file corrupted, ignoring it", zap.Error(err))
		return Checkpoint{}, nil
	}
	return checkpoint, nil
}

// Pending returns the number of mutations since the last checkpoint.
func (cm *CheckpointManager) Pending() uint64 {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.pending
}
