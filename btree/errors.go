package btree

import "BTreeDB/types"

var (
	ErrStorageExhausted   = types.ErrStorageExhausted
	ErrNotFound           = types.ErrNotFound
	ErrCorruptReference   = types.ErrCorruptReference
	ErrInvariantViolation = types.ErrInvariantViolation
	ErrCheckpointFailed   = types.ErrCheckpointFailed
	ErrClosed             = types.ErrClosed
	ErrInvalidConfig      = types.ErrInvalidConfig
)
