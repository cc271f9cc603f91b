package clipring

// TailAdvanceFunc decides how the tail gives way when the writer needs room.
// It is invoked with the number of elements that must be reclaimed and
// returns the number actually discarded. A policy may discard more than min
// (for example whole blocks at a time) but never touches excluded blocks;
// if it discards less, the ring tops up with the default policy so Write can
// keep its never-fails contract.
type TailAdvanceFunc func(r *Ring, min int) int

// Options configures a Ring. The zero value of any field selects a default.
type Options struct {
	// Size is the element count of the initial arena. Required.
	Size int

	// MemoryLimit caps the total elements allocated across all arenas.
	// Zero means unlimited. Exceeding the limit fails with ErrOutOfMemory.
	MemoryLimit int

	// TailAdvance overrides the forced-overwrite policy. Defaults to
	// discarding exactly the requested minimum.
	TailAdvance TailAdvanceFunc
}

// Ring is a block-structured circular buffer. It owns a set of arenas, the
// blocks carved from them, and the two privileged cursors head (write
// position) and tail (read position) that delimit the unread window.
//
// The ring is single-threaded and non-blocking: Write and Read always return
// without suspending, and a caller delivering traffic from multiple
// goroutines must serialize all access to one Ring externally.
type Ring struct {
	arenas []*Arena
	blocks map[BlockID]*Block
	nextID BlockID

	head *Cursor
	tail *Cursor

	// unread is the authoritative size of the window [tail, head). The
	// cursor positions alone cannot distinguish a completely full ring from
	// an empty one.
	unread int

	memoryLimit int
	allocated   int
	tailAdvance TailAdvanceFunc
}

// New creates a ring with one arena of opts.Size elements, spanned by a
// single block, with head and tail both at its start.
func New(opts Options) (*Ring, error) {
	r := &Ring{
		blocks:      make(map[BlockID]*Block),
		memoryLimit: opts.MemoryLimit,
		tailAdvance: opts.TailAdvance,
	}
	if r.tailAdvance == nil {
		r.tailAdvance = discardExact
	}

	arena, err := r.newArena(opts.Size)
	if err != nil {
		return nil, err
	}
	b := &Block{
		id:          r.nextBlockID(),
		ring:        r,
		arena:       arena,
		start:       0,
		length:      arena.Len(),
		active:      true,
		tailVisited: true,
	}
	b.physNext = b.id
	b.physPrev = b.id
	b.logicalNext = b.id
	r.blocks[b.id] = b

	r.head = &Cursor{ring: r, block: b.id, off: b.start}
	r.tail = &Cursor{ring: r, block: b.id, off: b.start}
	b.addCursor(r.head)
	b.addCursor(r.tail)
	return r, nil
}

func (r *Ring) nextBlockID() BlockID {
	r.nextID++
	return r.nextID
}

// Block resolves a block ID, returning nil if the block has been freed.
func (r *Ring) Block(id BlockID) *Block {
	return r.blocks[id]
}

// Head returns the ring's write cursor. Callers must not move it.
func (r *Ring) Head() *Cursor {
	return r.head
}

// Tail returns the ring's read cursor. Callers must not move it.
func (r *Ring) Tail() *Cursor {
	return r.tail
}

// BufferHealth returns the number of unread elements between tail and head.
func (r *Ring) BufferHealth() int {
	return r.unread
}

// Capacity returns the total element count of all active blocks. Excluded
// runs do not count until they are reconciled back.
func (r *Ring) Capacity() int {
	hb := r.blocks[r.head.block]
	total := hb.length
	limit := len(r.blocks) + 1
	for b := hb.logicalNextBlock(); b != hb && limit > 0; b = b.logicalNextBlock() {
		total += b.length
		limit--
	}
	return total
}

// Write copies the given elements into the ring at the head. It never fails
// and never blocks: when the unread window would outgrow the active
// capacity, the tail is advanced forward exactly enough to make room,
// discarding the oldest unread elements. The tail is never advanced into an
// excluded block, and the head skips excluded blocks entirely.
func (r *Ring) Write(p []byte) {
	for len(p) > 0 {
		hb := r.blocks[r.head.block]
		space := hb.end() - r.head.off
		if space == 0 {
			r.headEnterNext()
			continue
		}
		c := len(p)
		if c > space {
			c = space
		}
		if over := r.unread + c - r.writableCapacity(); over > 0 {
			if got := r.tailAdvance(r, over); got < over {
				discardExact(r, over-got)
			}
		}
		copy(hb.arena.data[r.head.off:], p[:c])
		r.head.off += c
		r.unread += c
		p = p[c:]
	}
}

// Read copies up to len(buf) unread elements into buf, advancing the tail.
// It returns the number of elements read, which is less than len(buf) when
// the tail catches up with the head. The tail never passes the head.
func (r *Ring) Read(buf []byte) int {
	return r.consume(buf, len(buf))
}

// Discard drops up to n unread elements without copying them, exactly as if
// they had been read into a discarded buffer.
func (r *Ring) Discard(n int) int {
	return r.consume(nil, n)
}

// consume advances the tail over n elements, copying into buf unless it is
// nil. n is capped by the unread window, which is what keeps the tail from
// ever crossing the head: positions beyond the window are never touched.
func (r *Ring) consume(buf []byte, n int) int {
	if n > r.unread {
		n = r.unread
	}
	got := 0
	for got < n {
		tb := r.blocks[r.tail.block]
		space := tb.end() - r.tail.off
		if space == 0 {
			r.tailEnterNext()
			continue
		}
		c := n - got
		if c > space {
			c = space
		}
		if buf != nil {
			copy(buf[got:], tb.arena.data[r.tail.off:r.tail.off+c])
		}
		r.tail.off += c
		got += c
	}
	r.unread -= got
	return got
}

// discardExact is the default overwrite policy: advance the tail over
// exactly min elements.
func discardExact(r *Ring, min int) int {
	return r.consume(nil, min)
}

// tailEnterNext moves the tail forward to the start of the next block in
// the live rotation that can hold unread data, marking every block it
// passes as visited. A block whose tailVisited flag is clear was
// reactivated after an exclusion and cannot contain window data (the head
// is barred from entering it until the tail has passed), so the tail skips
// its stale contents wholesale rather than reading them as if unread.
func (r *Ring) tailEnterNext() {
	nb := r.blocks[r.tail.block].logicalNextBlock()
	for !nb.tailVisited {
		nb.tailVisited = true
		nb = nb.logicalNextBlock()
	}
	r.tail.relocate(nb, nb.start)
}

// headEnterNext moves the head into the next block of the live rotation.
// A reactivated block is gated until the tail has passed it; the pass
// happens here on the head's behalf. The gated block holds no window data,
// so passing it discards nothing: a tail resting on a block boundary is
// rebound against the rotation as it stands, and the block is marked
// visited. A split boundary flagged for reconciliation is folded on the way
// in, once its gate has been satisfied.
func (r *Ring) headEnterNext() {
	nb := r.blocks[r.head.block].logicalNextBlock()
	if !nb.tailVisited {
		if tb := r.blocks[r.tail.block]; r.tail.off == tb.end() {
			r.tailEnterNext()
		}
		nb.tailVisited = true
	}
	if pb := nb.physPrevBlock(); pb != nb && pb.pendingMerge {
		start := nb.start
		if nb.AttemptReconcilePrev() {
			r.head.relocate(pb, start)
			r.syncEmptyTail()
			return
		}
	}
	r.head.relocate(nb, nb.start)
	r.syncEmptyTail()
}

// syncEmptyTail keeps an empty window's tail glued to the head, so both
// cursors agree on where the window restarts after a boundary crossing.
func (r *Ring) syncEmptyTail() {
	if r.unread == 0 {
		r.tail.relocate(r.blocks[r.head.block], r.head.off)
	}
}

// writableCapacity is the capacity currently available to the writer:
// active blocks whose re-entry gate is open. A reactivated block's space
// joins once the tail has passed it.
func (r *Ring) writableCapacity() int {
	hb := r.blocks[r.head.block]
	total := hb.length
	limit := len(r.blocks) + 1
	for b := hb.logicalNextBlock(); b != hb && limit > 0; b = b.logicalNextBlock() {
		if b.tailVisited {
			total += b.length
		}
		limit--
	}
	return total
}

// windowEnd returns the position one past the newest unread element: the
// walk of unread elements from the tail through visited blocks. The result
// may rest on a block's end boundary.
func (r *Ring) windowEnd() (*Block, int) {
	b := r.blocks[r.tail.block]
	off := r.tail.off
	d := r.unread
	for {
		space := b.end() - off
		if d <= space {
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

// Distance walks the logical chain from a to b and returns the element
// count between them. It is defined only when b is reachable from a within
// one full logical loop; otherwise ErrUnreachableCursor is returned and
// nothing is mutated.
func (r *Ring) Distance(a, b *Cursor) (int, error) {
	if a == nil || b == nil || a.ring != r || b.ring != r {
		return 0, ErrCursorNotFound
	}
	if a.block == b.block && b.off >= a.off {
		return b.off - a.off, nil
	}
	ab, ok := r.blocks[a.block]
	if !ok {
		return 0, ErrBlockFreed
	}
	acc := ab.end() - a.off
	limit := len(r.blocks) + 1
	for cur := ab.logicalNextBlock(); limit > 0; cur = cur.logicalNextBlock() {
		if cur.id == b.block {
			return acc + (b.off - cur.start), nil
		}
		if cur.id == a.block {
			break
		}
		acc += cur.length
		limit--
	}
	return 0, ErrUnreachableCursor
}

// AllocateArena grows the ring by linking a new arena's single block into
// the rotation immediately after the given block. Existing blocks and
// cursors are untouched, so outstanding references stay valid. The
// insertion point should lie outside the unread window (the block after the
// head is always safe); inserting inside the window would interleave
// uninitialized storage with unread data.
func (r *Ring) AllocateArena(size int, after BlockID) (BlockID, error) {
	ab, ok := r.blocks[after]
	if !ok {
		return 0, ErrBlockFreed
	}
	arena, err := r.newArena(size)
	if err != nil {
		return 0, err
	}
	nb := &Block{
		id:          r.nextBlockID(),
		ring:        r,
		arena:       arena,
		start:       0,
		length:      arena.Len(),
		active:      true,
		tailVisited: true,
	}
	nb.physPrev = ab.id
	nb.physNext = ab.physNext
	ab.physNextBlock().physPrev = nb.id
	ab.physNext = nb.id
	r.blocks[nb.id] = nb
	nb.repairLogicalLinks()
	return nb.id, nil
}

// Reconcile sweeps the physical chain and merges every boundary flagged by
// a clip's splits and exclusions, returning the number of merges performed.
// Boundaries whose merge is refused only because a block is still excluded
// or still gated by the re-entry rule keep their flag and are retried on
// the next sweep, or folded when the head next crosses them; boundaries
// that can never merge (different arenas, non-adjacent) are unflagged.
func (r *Ring) Reconcile() int {
	ids := make([]BlockID, 0, len(r.blocks))
	for id := range r.blocks {
		ids = append(ids, id)
	}
	merged := 0
	for _, id := range ids {
		b, ok := r.blocks[id]
		if !ok || !b.pendingMerge {
			continue
		}
		n := b.physNextBlock()
		if n == b || n.arena != b.arena || b.end() != n.start {
			b.pendingMerge = false
			continue
		}
		if b.AttemptReconcileNext() {
			merged++
		}
	}
	return merged
}
