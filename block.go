package clipring

// BlockID uniquely identifies a block within a Ring. Block references are
// held as IDs resolved through the ring's registry rather than as raw
// pointers, so a stale reference can be detected instead of silently
// following a merged-away block.
type BlockID uint64

// Block is a contiguous sub-range of one arena and the unit of splitting,
// merging and exclusion. Every block is a node in the circular physical
// chain, which records creation/adjacency order, and carries a cached
// logicalNext shortcut to the next block the live rotation should visit.
type Block struct {
	id    BlockID
	ring  *Ring
	arena *Arena // back-reference, not owning

	start  int // arena-absolute offset of first element
	length int

	physNext    BlockID
	physPrev    BlockID
	logicalNext BlockID

	active bool

	// tailVisited records whether the tail has entered this block since it
	// was last reactivated. The head refuses to enter a block whose flag is
	// clear until the tail has been forced through it ("tail must pass
	// first").
	tailVisited bool

	// pendingMerge marks a block whose split boundary with its physical
	// successor should be reconciled once both sides are active again.
	pendingMerge bool

	cursors []*Cursor
}

// ID returns the block's stable identifier.
func (b *Block) ID() BlockID {
	return b.id
}

// Start returns the arena-absolute offset of the block's first element.
func (b *Block) Start() int {
	return b.start
}

// Len returns the block's element count.
func (b *Block) Len() int {
	return b.length
}

// Active reports whether the block participates in the live rotation.
func (b *Block) Active() bool {
	return b.active
}

// PhysNext returns the physically next block's ID.
func (b *Block) PhysNext() BlockID {
	return b.physNext
}

// PhysPrev returns the physically previous block's ID.
func (b *Block) PhysPrev() BlockID {
	return b.physPrev
}

// LogicalNext returns the ID of the next block in the live rotation.
func (b *Block) LogicalNext() BlockID {
	return b.logicalNext
}

// end returns the arena-absolute offset one past the block's last element.
func (b *Block) end() int {
	return b.start + b.length
}

func (b *Block) physNextBlock() *Block {
	return b.ring.blocks[b.physNext]
}

func (b *Block) physPrevBlock() *Block {
	return b.ring.blocks[b.physPrev]
}

func (b *Block) logicalNextBlock() *Block {
	return b.ring.blocks[b.logicalNext]
}

// addCursor registers a cursor as referencing this block.
func (b *Block) addCursor(c *Cursor) {
	b.cursors = append(b.cursors, c)
}

// removeCursor unregisters a cursor from this block.
func (b *Block) removeCursor(c *Cursor) {
	for i, cur := range b.cursors {
		if cur == c {
			b.cursors = append(b.cursors[:i], b.cursors[i+1:]...)
			return
		}
	}
}

// Split carves a new block covering [at.Offset(), end) off the tail of this
// block, shrinking the receiver to [start, at.Offset()). The physical and
// logical chains are rewired and every cursor anchored at or beyond the
// split point is relocated into the new block, so outstanding references
// follow the split without their holders doing anything. The split cursor
// must be anchored in this block and lie strictly inside it; splitting
// exactly at a boundary is reported as ErrInvalidSplitPoint.
//
// Cost is O(1) plus O(k) for the k cursors currently anchored here.
func (b *Block) Split(at *Cursor) (*Block, error) {
	if at == nil || at.ring != b.ring || at.block != b.id {
		return nil, ErrInvalidSplitPoint
	}
	p := at.off
	if p <= b.start || p >= b.end() {
		return nil, ErrInvalidSplitPoint
	}

	r := b.ring
	nb := &Block{
		id:     r.nextBlockID(),
		ring:   r,
		arena:  b.arena,
		start:  p,
		length: b.end() - p,
		active: b.active,

		// The new half belongs to the same region lap as the old one.
		tailVisited:  b.tailVisited,
		pendingMerge: b.pendingMerge,
	}
	b.length = p - b.start
	b.pendingMerge = false

	// Physical chain: b -> nb -> old physNext.
	nb.physPrev = b.id
	nb.physNext = b.physNext
	b.physNextBlock().physPrev = nb.id
	b.physNext = nb.id

	// Logical chain: an active block now rotates through its new half; an
	// excluded block's halves both shortcut to the same next active block.
	nb.logicalNext = b.logicalNext
	if b.active {
		b.logicalNext = nb.id
	}

	r.blocks[nb.id] = nb

	// Relocate cursors at or beyond the split point. Offsets are
	// arena-absolute, so only the owning block changes.
	kept := b.cursors[:0]
	for _, c := range b.cursors {
		if c.off >= p {
			c.block = nb.id
			nb.cursors = append(nb.cursors, c)
		} else {
			kept = append(kept, c)
		}
	}
	b.cursors = kept

	return nb, nil
}

// AttemptReconcilePrev merges this block into its physical predecessor and
// frees it. The merge is refused, returning false with no mutation, unless
// the two blocks share an arena, are byte-adjacent, both are active, and
// neither is still gated by the re-entry rule: an excluded block is never
// silently merged away, and a reactivated block keeps its identity until
// the tail has passed it, since merging earlier would glue its stale
// contents into the unread window. On success every cursor referencing this
// block is relocated into the predecessor with its offset unchanged. This is
// the only way a block is destroyed outside ring teardown.
func (b *Block) AttemptReconcilePrev() bool {
	p := b.physPrevBlock()
	if p == nil || p == b {
		return false
	}
	if p.arena != b.arena {
		return false
	}
	if p.end() != b.start {
		return false
	}
	if !b.active || !p.active {
		return false
	}
	if !b.tailVisited || !p.tailVisited {
		return false
	}

	p.length += b.length
	p.pendingMerge = b.pendingMerge

	// Unlink from the physical chain.
	p.physNext = b.physNext
	b.physNextBlock().physPrev = p.id

	// Both blocks are active and adjacent, so p's logical successor was b.
	p.logicalNext = b.logicalNext
	if p.logicalNext == b.id {
		p.logicalNext = p.id
	}

	// Relocate cursors; contiguous ranges keep offsets valid as-is.
	for _, c := range b.cursors {
		c.block = p.id
		p.cursors = append(p.cursors, c)
	}
	b.cursors = nil

	delete(b.ring.blocks, b.id)
	b.ring = nil
	return true
}

// AttemptReconcileNext merges the physical successor into this block.
func (b *Block) AttemptReconcileNext() bool {
	n := b.physNextBlock()
	if n == nil || n == b {
		return false
	}
	return n.AttemptReconcilePrev()
}

// MarkExcluded removes the block from the live rotation. The logical chain
// is repaired so the rotation skips it; its memory is left untouched until
// it is reactivated. The caller must ensure neither the head nor the tail
// currently rests inside the block.
func (b *Block) MarkExcluded() {
	if !b.active {
		return
	}
	b.active = false
	b.pendingMerge = true
	b.repairLogicalLinks()
}

// MarkActive returns the block to the live rotation and arms the re-entry
// rule: the head may not enter until the tail has visited the block once
// since reactivation.
func (b *Block) MarkActive() {
	if b.active {
		return
	}
	b.active = true
	b.tailVisited = false
	b.repairLogicalLinks()
}

// repairLogicalLinks restores the invariant that every block's logicalNext
// points at the nearest physically subsequent active block, for this block
// and for the run of excluded predecessors whose shortcut lands here.
func (b *Block) repairLogicalLinks() {
	next := b.nextActive()
	b.logicalNext = next

	// Walk back over any excluded run, then fix the first active
	// predecessor. Excluded blocks' shortcuts are refreshed too so a stale
	// read can never re-enter an excluded run.
	target := b.id
	if !b.active {
		target = next
	}
	for p := b.physPrevBlock(); p != nil && p != b; p = p.physPrevBlock() {
		if p.active {
			p.logicalNext = target
			break
		}
		p.logicalNext = target
	}
}

// nextActive returns the nearest physically subsequent active block,
// which may be the block itself when it is the only active one.
func (b *Block) nextActive() BlockID {
	for n := b.physNextBlock(); n != nil; n = n.physNextBlock() {
		if n.active {
			return n.id
		}
		if n == b {
			break
		}
	}
	return b.id
}
