package types

import "errors"

// Geometry and grid errors.
var (
	// ErrInvalidGeometry reports a non-positive dimension, a malformed
	// position, or an extent that exceeds a container's bounds.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrCellConflict reports an occupy over cells that are not free. The
	// engine always checks fit first, so this only surfaces when restoring
	// inconsistent external state.
	ErrCellConflict = errors.New("cell already occupied")
)

// Lookup errors.
var (
	ErrItemNotFound      = errors.New("item not found")
	ErrContainerNotFound = errors.New("container not found")
	ErrItemNotStowed     = errors.New("item is not stowed")
	ErrItemDisposed      = errors.New("item has been disposed")
)

// Planning errors.
var (
	ErrInfeasiblePlacement = errors.New("no feasible placement")
	ErrOverBudget          = errors.New("exceeds mass budget")
	ErrContainerConflict   = errors.New("container already registered with different geometry")
	ErrInvalidRequest      = errors.New("invalid request")
)
