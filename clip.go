package clipring

import "io"

// Clip is a frozen run of blocks covering the most recent unread data at the
// time BeginClip was called. While the clip is open its blocks are excluded
// from the live rotation: write and read traffic never touches their memory
// and they do not count toward capacity. The holder drains the frozen data
// with Read and then calls Close to reconcile the run back into the ring.
type Clip struct {
	ring   *Ring
	blocks []BlockID // frozen run, oldest first
	idx    int
	cur    *Cursor
	size   int
	closed bool
}

// BeginClip freezes the most recent n unread elements. Exact boundaries are
// carved by splitting blocks where needed, the covered run is excluded from
// the rotation, and if the tail fell inside the window it is relocated to
// the head (the frozen data is preserved in the clip, so nothing readable is
// lost). n is clamped to the unread window; an empty window is reported as
// ErrNoData.
func (r *Ring) BeginClip(n int) (*Clip, error) {
	if n <= 0 {
		return nil, ErrInvalidSize
	}
	if r.unread == 0 {
		return nil, ErrNoData
	}
	if n > r.unread {
		n = r.unread
	}

	// The head must not rest at the end of a finished block while its
	// neighborhood is being carved up.
	if hb := r.blocks[r.head.block]; r.head.off == hb.end() {
		r.headEnterNext()
		if n > r.unread {
			n = r.unread
		}
		if n == 0 {
			return nil, ErrNoData
		}
	}

	// Locate the window start, unread-n elements ahead of the tail. When it
	// coincides with the head itself the ring is exactly full at that spot:
	// the head's standing room cannot be frozen, so the clip is clamped to
	// start at the head block's end boundary instead.
	sb, soff := r.advancePosition(r.tail.block, r.tail.off, r.unread-n)
	degenerate := false
	first := sb
	if sb.id == r.head.block && soff == r.head.off {
		n -= sb.end() - soff
		if n <= 0 {
			return nil, ErrNoData
		}
		degenerate = true
	} else if soff > sb.start {
		at, err := r.NewCursor(sb.id, soff)
		if err != nil {
			return nil, err
		}
		right, err := sb.Split(at)
		at.Release()
		if err != nil {
			return nil, err
		}
		sb.pendingMerge = true
		first = right
	}

	// Split the head's block so the region ends exactly at the head.
	if hb := r.blocks[r.head.block]; r.head.off > hb.start {
		at, err := r.NewCursor(hb.id, r.head.off)
		if err != nil {
			return nil, err
		}
		if _, err := hb.Split(at); err != nil {
			at.Release()
			return nil, err
		}
		at.Release()
	}
	if degenerate {
		// The region wraps: it runs from the head block's end boundary all
		// the way around to the head.
		first = r.blocks[r.head.block].logicalNextBlock()
	}

	// Collect the run from the window start up to the head's block. Gated
	// blocks inside the span hold nothing from the window and stay in the
	// live rotation rather than being frozen.
	ids := make([]BlockID, 0, 4)
	limit := len(r.blocks) + 1
	b := first
	for ; b.id != r.head.block && limit > 0; b = b.logicalNextBlock() {
		if b.tailVisited {
			ids = append(ids, b.id)
		}
		limit--
	}
	if b.id != r.head.block {
		return nil, ErrUnreachableCursor
	}
	if len(ids) == 0 {
		return nil, ErrNoData
	}

	// Relocate the tail before the region leaves the rotation.
	for _, id := range ids {
		if r.tail.block == id {
			r.tail.relocate(r.blocks[r.head.block], r.head.off)
			break
		}
	}
	r.unread -= n

	for _, id := range ids {
		r.blocks[id].MarkExcluded()
	}

	cur, err := r.NewCursor(ids[0], r.blocks[ids[0]].start)
	if err != nil {
		return nil, err
	}
	return &Clip{
		ring:   r,
		blocks: ids,
		cur:    cur,
		size:   n,
	}, nil
}

// EndClip closes a clip begun on this ring, pairing with BeginClip for
// callers that treat the clip as an opaque handle.
func (r *Ring) EndClip(c *Clip) error {
	if c == nil || c.ring != r {
		return ErrClipClosed
	}
	return c.Close()
}

// advancePosition walks d elements forward from an arena-absolute position
// along the logical chain, returning the block and offset it lands on.
// Reactivated blocks the tail has not passed hold no window data and are
// skipped without consuming any of d. A landing exactly on a block boundary
// is normalized to the start of the next block in rotation.
func (r *Ring) advancePosition(block BlockID, off, d int) (*Block, int) {
	b := r.blocks[block]
	for {
		space := b.end() - off
		if d < space {
			return b, off + d
		}
		d -= space
		b = b.logicalNextBlock()
		for !b.tailVisited {
			b = b.logicalNextBlock()
		}
		off = b.start
	}
}

// Len returns the clip's total element count.
func (c *Clip) Len() int {
	return c.size
}

// Blocks returns the IDs of the frozen run, oldest first.
func (c *Clip) Blocks() []BlockID {
	out := make([]BlockID, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Read drains the frozen data in order, oldest first. It implements
// io.Reader semantics: io.EOF once the clip is exhausted, ErrClipClosed
// after Close.
func (c *Clip) Read(buf []byte) (int, error) {
	if c.closed {
		return 0, ErrClipClosed
	}
	got := 0
	for got < len(buf) && c.idx < len(c.blocks) {
		b := c.ring.blocks[c.blocks[c.idx]]
		space := b.end() - c.cur.off
		if space == 0 {
			c.idx++
			if c.idx == len(c.blocks) {
				break
			}
			nb := c.ring.blocks[c.blocks[c.idx]]
			c.cur.relocate(nb, nb.start)
			continue
		}
		n := len(buf) - got
		if n > space {
			n = space
		}
		copy(buf[got:], b.arena.data[c.cur.off:c.cur.off+n])
		c.cur.off += n
		got += n
	}
	if got == 0 && len(buf) > 0 {
		return 0, io.EOF
	}
	return got, nil
}

// Close reactivates the frozen run and reconciles it back into its
// neighbors. Reactivation arms the re-entry rule on every block in the run:
// the head will not reuse any of them until the tail has passed through.
func (c *Clip) Close() error {
	if c.closed {
		return ErrClipClosed
	}
	c.closed = true
	c.cur.Release()
	for _, id := range c.blocks {
		if b, ok := c.ring.blocks[id]; ok {
			b.MarkActive()
		}
	}
	// The rotation just regained blocks that may sit anywhere relative to
	// the unread window. Rebind the head to the window's end before traffic
	// resumes, so the next write lands after the newest unread element.
	eb, eoff := c.ring.windowEnd()
	c.ring.head.relocate(eb, eoff)
	c.ring.Reconcile()
	return nil
}
