package clipring

// Cursor is a relocatable reference to one position inside one block. Every
// cursor is registered with the block it currently references, so a split or
// merge can repoint all outstanding cursors transactionally without their
// holders doing anything. Offsets are arena-absolute; a cursor may rest at a
// block's one-past-the-end position between boundary crossings.
//
// The ring owns its two privileged cursors, head and tail; all other cursors
// (split points, clip read positions) are owned by whoever created them and
// must be released with Release when no longer needed.
type Cursor struct {
	ring  *Ring
	block BlockID
	off   int
}

// NewCursor creates a cursor anchored in the given block at an
// arena-absolute offset within [Start, Start+Len).
func (r *Ring) NewCursor(block BlockID, off int) (*Cursor, error) {
	b, ok := r.blocks[block]
	if !ok {
		return nil, ErrBlockFreed
	}
	if off < b.start || off >= b.end() {
		return nil, ErrCursorOutOfRange
	}
	c := &Cursor{ring: r, block: block, off: off}
	b.addCursor(c)
	return c, nil
}

// Block returns the ID of the block the cursor currently references.
func (c *Cursor) Block() BlockID {
	return c.block
}

// Offset returns the cursor's arena-absolute offset.
func (c *Cursor) Offset() int {
	return c.off
}

// Move repositions the cursor into the given block at an arena-absolute
// offset within [Start, Start+Len).
func (c *Cursor) Move(block BlockID, off int) error {
	if c.ring == nil {
		return ErrCursorNotFound
	}
	b, ok := c.ring.blocks[block]
	if !ok {
		return ErrBlockFreed
	}
	if off < b.start || off >= b.end() {
		return ErrCursorOutOfRange
	}
	c.relocate(b, off)
	return nil
}

// Release unregisters the cursor from its block. The cursor must not be used
// afterwards.
func (c *Cursor) Release() {
	if c.ring == nil {
		return
	}
	if b, ok := c.ring.blocks[c.block]; ok {
		b.removeCursor(c)
	}
	c.ring = nil
}

// relocate moves the cursor between blocks, keeping the registration
// invariant: the cursor appears in exactly one block's list at all times.
func (c *Cursor) relocate(to *Block, off int) {
	if c.block != to.id {
		if from, ok := c.ring.blocks[c.block]; ok {
			from.removeCursor(c)
		}
		to.addCursor(c)
		c.block = to.id
	}
	c.off = off
}
