package types

import "github.com/pkg/errors"

var (
	// ErrStorageExhausted: the capacity ceiling was reached or no free slot is left.
	ErrStorageExhausted = errors.New("storage exhausted")

	// ErrNotFound: the key is not in the tree.
	ErrNotFound = errors.New("key not found")

	// ErrCorruptReference: a page index is out of range or its page header
	// does not describe an allocated page.
	ErrCorruptReference = errors.New("corrupt page reference")

	// ErrInvariantViolation: Check found a structural defect in the tree.
	ErrInvariantViolation = errors.New("b-tree invariant violated")

	// ErrCheckpointFailed: the mutation was applied but the checkpoint that
	// followed it failed.
	ErrCheckpointFailed = errors.New("checkpoint failed")

	ErrClosed        = errors.New("page store is closed")
	ErrInvalidConfig = errors.New("invalid configuration")
)
