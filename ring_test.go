package clipring

import (
	"bytes"
	"testing"
)

func newRing(t *testing.T, size int) *Ring {
	t.Helper()
	r, err := New(Options{Size: size})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func readAll(t *testing.T, r *Ring) []byte {
	t.Helper()
	buf := make([]byte, r.BufferHealth())
	n := r.Read(buf)
	return buf[:n]
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{Size: 0}); err != ErrInvalidSize {
		t.Errorf("Expected ErrInvalidSize for zero size, got %v", err)
	}
	if _, err := New(Options{Size: -4}); err != ErrInvalidSize {
		t.Errorf("Expected ErrInvalidSize for negative size, got %v", err)
	}
	if _, err := New(Options{Size: 16, MemoryLimit: 8}); err != ErrOutOfMemory {
		t.Errorf("Expected ErrOutOfMemory over the limit, got %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	r := newRing(t, 128)
	r.Write([]byte("test123"))

	if h := r.BufferHealth(); h != 7 {
		t.Errorf("Expected 7 unread, got %d", h)
	}
	buf := make([]byte, 7)
	if n := r.Read(buf); n != 7 {
		t.Fatalf("Expected to read 7, got %d", n)
	}
	if string(buf) != "test123" {
		t.Errorf("Expected %q, got %q", "test123", buf)
	}
	if h := r.BufferHealth(); h != 0 {
		t.Errorf("Expected empty window after read, got %d", h)
	}
}

func TestReadEmpty(t *testing.T) {
	r := newRing(t, 16)
	buf := make([]byte, 8)
	if n := r.Read(buf); n != 0 {
		t.Errorf("Expected 0 from empty ring, got %d", n)
	}
}

func TestReadStopsAtHead(t *testing.T) {
	r := newRing(t, 16)
	r.Write([]byte("ab"))

	buf := make([]byte, 5)
	if n := r.Read(buf); n != 2 {
		t.Errorf("Expected short read of 2, got %d", n)
	}
	if string(buf[:2]) != "ab" {
		t.Errorf("Expected %q, got %q", "ab", buf[:2])
	}
	if n := r.Read(buf); n != 0 {
		t.Errorf("Expected nothing after the head, got %d", n)
	}
}

func TestReadInChunks(t *testing.T) {
	r := newRing(t, 16)
	r.Write([]byte("abcdef"))

	buf := make([]byte, 3)
	if n := r.Read(buf); n != 3 || string(buf) != "abc" {
		t.Errorf("Expected %q, got %q (n=%d)", "abc", buf, n)
	}
	if n := r.Read(buf); n != 3 || string(buf) != "def" {
		t.Errorf("Expected %q, got %q (n=%d)", "def", buf, n)
	}
}

func TestDiscard(t *testing.T) {
	r := newRing(t, 16)
	r.Write([]byte("abcdef"))

	if n := r.Discard(2); n != 2 {
		t.Fatalf("Expected to discard 2, got %d", n)
	}
	if got := readAll(t, r); string(got) != "cdef" {
		t.Errorf("Expected %q after discard, got %q", "cdef", got)
	}
	if n := r.Discard(10); n != 0 {
		t.Errorf("Expected 0 from empty discard, got %d", n)
	}
}

func TestWrapOverwrite(t *testing.T) {
	// Two-element ring receives four elements: the oldest two are
	// overwritten and the survivors are the last two in order.
	r := newRing(t, 2)
	r.Write([]byte("1234"))

	if h := r.BufferHealth(); h != 2 {
		t.Fatalf("Expected 2 unread, got %d", h)
	}
	buf := make([]byte, 1)
	if n := r.Read(buf); n != 1 || buf[0] != '3' {
		t.Errorf("Expected first survivor '3', got %q (n=%d)", buf[:n], n)
	}
	if n := r.Read(buf); n != 1 || buf[0] != '4' {
		t.Errorf("Expected second survivor '4', got %q (n=%d)", buf[:n], n)
	}
	if h := r.BufferHealth(); h != 0 {
		t.Errorf("Expected empty window, got %d", h)
	}
}

func TestSplitTransparency(t *testing.T) {
	// A split must be invisible to the write/read protocol: data written
	// across the new boundary reads back unchanged.
	r := newRing(t, 4)
	b := r.Block(r.Head().Block())

	at, err := r.NewCursor(b.ID(), 2)
	if err != nil {
		t.Fatalf("NewCursor failed: %v", err)
	}
	if _, err := b.Split(at); err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	at.Release()

	r.Write([]byte("TEST"))
	if got := readAll(t, r); string(got) != "TEST" {
		t.Errorf("Expected %q across the split, got %q", "TEST", got)
	}
}

func TestBufferHealthAtCapacity(t *testing.T) {
	r := newRing(t, 4)
	r.Write([]byte("abcd"))
	if h := r.BufferHealth(); h != 4 {
		t.Fatalf("Expected full window of 4, got %d", h)
	}

	r.Write([]byte("e"))
	if h := r.BufferHealth(); h != 4 {
		t.Errorf("Expected window to stay at capacity, got %d", h)
	}
	if got := readAll(t, r); string(got) != "bcde" {
		t.Errorf("Expected %q, got %q", "bcde", got)
	}
}

func TestDistance(t *testing.T) {
	r := newRing(t, 8)
	r.Write([]byte("abcdef"))

	d, err := r.Distance(r.Tail(), r.Head())
	if err != nil {
		t.Fatalf("Distance failed: %v", err)
	}
	if d != 6 {
		t.Errorf("Expected tail-to-head distance 6, got %d", d)
	}

	// Splitting must not change distances.
	b := r.Block(r.Tail().Block())
	at, err := r.NewCursor(b.ID(), 3)
	if err != nil {
		t.Fatalf("NewCursor failed: %v", err)
	}
	if _, err := b.Split(at); err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	at.Release()

	d, err = r.Distance(r.Tail(), r.Head())
	if err != nil {
		t.Fatalf("Distance after split failed: %v", err)
	}
	if d != 6 {
		t.Errorf("Expected distance 6 after split, got %d", d)
	}

	// The reverse direction wraps around the rotation.
	d, err = r.Distance(r.Head(), r.Tail())
	if err != nil {
		t.Fatalf("Reverse distance failed: %v", err)
	}
	if d != 2 {
		t.Errorf("Expected head-to-tail distance 2, got %d", d)
	}

	if _, err := r.Distance(nil, r.Head()); err != ErrCursorNotFound {
		t.Errorf("Expected ErrCursorNotFound for nil cursor, got %v", err)
	}
	other := newRing(t, 8)
	if _, err := r.Distance(other.Tail(), r.Head()); err != ErrCursorNotFound {
		t.Errorf("Expected ErrCursorNotFound for foreign cursor, got %v", err)
	}
}

func TestDistanceUnreachable(t *testing.T) {
	// A cursor anchored in an excluded block cannot be reached from the live
	// rotation, so the walk reports it instead of looping.
	r := newRing(t, 8)
	r.Write([]byte("AAAABBBB"))

	clip, err := r.BeginClip(4)
	if err != nil {
		t.Fatalf("BeginClip failed: %v", err)
	}
	frozen := clip.Blocks()[0]
	c, err := r.NewCursor(frozen, r.Block(frozen).Start())
	if err != nil {
		t.Fatalf("NewCursor failed: %v", err)
	}
	if _, err := r.Distance(r.Tail(), c); err != ErrUnreachableCursor {
		t.Errorf("Expected ErrUnreachableCursor into a frozen block, got %v", err)
	}
	c.Release()
	if err := clip.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCursorValidation(t *testing.T) {
	r := newRing(t, 8)
	id := r.Head().Block()

	if _, err := r.NewCursor(id, 8); err != ErrCursorOutOfRange {
		t.Errorf("Expected ErrCursorOutOfRange at one-past-end, got %v", err)
	}
	if _, err := r.NewCursor(id, -1); err != ErrCursorOutOfRange {
		t.Errorf("Expected ErrCursorOutOfRange below start, got %v", err)
	}
	if _, err := r.NewCursor(BlockID(999), 0); err != ErrBlockFreed {
		t.Errorf("Expected ErrBlockFreed for unknown block, got %v", err)
	}

	c, err := r.NewCursor(id, 3)
	if err != nil {
		t.Fatalf("NewCursor failed: %v", err)
	}
	if err := c.Move(id, 7); err != nil {
		t.Errorf("Move failed: %v", err)
	}
	if err := c.Move(id, 8); err != ErrCursorOutOfRange {
		t.Errorf("Expected ErrCursorOutOfRange from Move, got %v", err)
	}
	c.Release()
	if err := c.Move(id, 0); err != ErrCursorNotFound {
		t.Errorf("Expected ErrCursorNotFound after Release, got %v", err)
	}
}

func TestAllocateArenaGrowth(t *testing.T) {
	r := newRing(t, 4)
	if c := r.Capacity(); c != 4 {
		t.Fatalf("Expected capacity 4, got %d", c)
	}

	id, err := r.AllocateArena(4, r.Head().Block())
	if err != nil {
		t.Fatalf("AllocateArena failed: %v", err)
	}
	if c := r.Capacity(); c != 8 {
		t.Errorf("Expected capacity 8 after growth, got %d", c)
	}
	if b := r.Block(id); b == nil || b.Len() != 4 {
		t.Fatalf("Expected new 4-element block, got %+v", b)
	}

	// The grown ring holds eight elements without overwriting.
	r.Write([]byte("abcdefgh"))
	if h := r.BufferHealth(); h != 8 {
		t.Errorf("Expected 8 unread, got %d", h)
	}
	if got := readAll(t, r); string(got) != "abcdefgh" {
		t.Errorf("Expected %q, got %q", "abcdefgh", got)
	}
}

func TestAllocateArenaCursorStability(t *testing.T) {
	r := newRing(t, 4)
	r.Write([]byte("ab"))
	c, err := r.NewCursor(r.Tail().Block(), 1)
	if err != nil {
		t.Fatalf("NewCursor failed: %v", err)
	}

	if _, err := r.AllocateArena(4, r.Head().Block()); err != nil {
		t.Fatalf("AllocateArena failed: %v", err)
	}
	if c.Block() != r.Tail().Block() || c.Offset() != 1 {
		t.Errorf("Cursor moved by growth: block=%d off=%d", c.Block(), c.Offset())
	}
	c.Release()
}

func TestAllocateArenaErrors(t *testing.T) {
	r, err := New(Options{Size: 4, MemoryLimit: 6})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := r.AllocateArena(4, r.Head().Block()); err != ErrOutOfMemory {
		t.Errorf("Expected ErrOutOfMemory, got %v", err)
	}
	if _, err := r.AllocateArena(0, r.Head().Block()); err != ErrInvalidSize {
		t.Errorf("Expected ErrInvalidSize, got %v", err)
	}
	if _, err := r.AllocateArena(2, BlockID(999)); err != ErrBlockFreed {
		t.Errorf("Expected ErrBlockFreed for unknown anchor, got %v", err)
	}
}

func TestLongStreamIntegrity(t *testing.T) {
	// Whatever mix of writes and reads occurs, the unread window is always
	// a contiguous suffix of everything written so far.
	r := newRing(t, 32)
	var stream bytes.Buffer
	next := byte(0)
	write := func(n int) {
		chunk := make([]byte, n)
		for i := range chunk {
			chunk[i] = next
			next++
		}
		stream.Write(chunk)
		r.Write(chunk)
	}

	write(10)
	r.Read(make([]byte, 4))
	write(40) // forces overwrite
	r.Discard(3)
	write(7)

	got := readAll(t, r)
	all := stream.Bytes()
	want := all[len(all)-len(got):]
	if !bytes.Equal(got, want) {
		t.Errorf("Window is not a suffix of the stream:\n got %v\nwant %v", got, want)
	}
}
