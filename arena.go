package clipring

// Arena is one raw backing allocation subdivided into blocks. An arena is
// exclusively owned by its Ring, never resized and never moved once
// allocated; blocks reference sub-ranges of it by offset.
type Arena struct {
	data []byte
}

// newArena allocates backing storage for size elements, charging it against
// the ring's memory limit.
func (r *Ring) newArena(size int) (*Arena, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if r.memoryLimit > 0 && r.allocated+size > r.memoryLimit {
		return nil, ErrOutOfMemory
	}
	a := &Arena{data: make([]byte, size)}
	r.arenas = append(r.arenas, a)
	r.allocated += size
	return a, nil
}

// Len returns the arena's total element count.
func (a *Arena) Len() int {
	return len(a.data)
}
