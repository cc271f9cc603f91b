// Package clipring provides a block-structured circular byte buffer whose
// backing storage is a chain of independently allocated blocks. Blocks can be
// split in O(1) without copying, merged back together, and temporarily
// excluded from the live rotation so a contiguous run of historical data can
// be frozen, drained by a slow consumer, and later rejoined for reuse.
package clipring

import "errors"

// Allocation errors
var (
	// ErrOutOfMemory indicates that an arena allocation would exceed the
	// ring's configured memory limit. The ring remains in its last-good state.
	ErrOutOfMemory = errors.New("arena allocation exceeds memory limit")

	// ErrInvalidSize indicates that a requested allocation size is not positive.
	ErrInvalidSize = errors.New("allocation size must be positive")
)

// Block structure errors
var (
	// ErrInvalidSplitPoint indicates that a split was requested at or beyond
	// a block's own boundary, or with a cursor anchored in a different block.
	ErrInvalidSplitPoint = errors.New("split point outside block interior")

	// ErrBlockFreed indicates that an operation referenced a block that has
	// already been merged away.
	ErrBlockFreed = errors.New("block has been freed")
)

// Cursor errors
var (
	// ErrCursorOutOfRange indicates that a cursor was constructed or moved to
	// an offset outside its block's bounds.
	ErrCursorOutOfRange = errors.New("cursor offset outside block bounds")

	// ErrCursorNotFound indicates that the cursor does not belong to this ring.
	ErrCursorNotFound = errors.New("cursor not found")

	// ErrUnreachableCursor indicates that two cursors cannot be related by
	// walking the logical chain at most one full loop.
	ErrUnreachableCursor = errors.New("cursor not reachable via logical chain")
)

// Clip errors
var (
	// ErrNoData indicates that a clip was requested while the ring holds no
	// unread data.
	ErrNoData = errors.New("no unread data to clip")

	// ErrClipClosed indicates that a clip was read or closed after Close.
	ErrClipClosed = errors.New("clip already closed")
)
