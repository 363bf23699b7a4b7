package lattice

// defaultNodeCapacity and defaultPathCapacity size an Arena's initial
// backing slices. They mirror the original's NODE_FREELIST_SIZE (512)
// and PATH_FREELIST_SIZE (2048) — large enough that an average
// sentence never grows the slice mid-parse, just sized as a capacity
// hint rather than a hard freelist chunk.
const (
	defaultNodeCapacity = 512
	defaultPathCapacity = 2048
)

// Arena owns the Node and Path storage for one Lattice. Reusing an
// Arena across sentences (via Reset) avoids a fresh heap allocation per
// Parse call — the same role the original's per-thread freelist chunks
// played, without the pointer-chasing: every reference into an Arena is
// a plain integer index, so the whole lattice for a sentence is exactly
// two contiguous slices.
type Arena struct {
	nodes []Node
	paths []Path
	// buf holds bytes for surface forms that do not come directly from
	// the input sentence (most unknown-word candidates still slice the
	// sentence buffer; buf exists for the rare candidate that must
	// synthesize its own surface text).
	buf []byte
}

// NewArena allocates an Arena with room for roughly one sentence's
// worth of nodes and paths before it needs to grow.
func NewArena() *Arena {
	return &Arena{
		nodes: make([]Node, 0, defaultNodeCapacity),
		paths: make([]Path, 0, defaultPathCapacity),
	}
}

// Reset truncates the arena's storage back to empty while retaining the
// underlying capacity, so the next sentence's allocations reuse the
// same backing array.
func (a *Arena) Reset() {
	a.nodes = a.nodes[:0]
	a.paths = a.paths[:0]
	a.buf = a.buf[:0]
}

// NewNode appends a zero-valued Node and returns its index.
func (a *Arena) NewNode() NodeIndex {
	a.nodes = append(a.nodes, Node{BNext: NoIndex, ENext: NoIndex, Prev: NoIndex, Next: NoIndex, RPath: NoIndex, LPath: NoIndex})
	return NodeIndex(len(a.nodes) - 1)
}

// NewPath appends a zero-valued Path and returns its index.
func (a *Arena) NewPath() PathIndex {
	a.paths = append(a.paths, Path{LNode: NoIndex, RNode: NoIndex, RNext: NoIndex, LNext: NoIndex})
	return PathIndex(len(a.paths) - 1)
}

// Node dereferences i. Callers must not retain the returned pointer
// across a call that might grow the arena (NewNode/NewPath can
// reallocate the backing slice).
func (a *Arena) Node(i NodeIndex) *Node {
	if i == NoIndex {
		return nil
	}
	return &a.nodes[i]
}

// Path dereferences i, with the same reallocation caveat as Node.
func (a *Arena) Path(i PathIndex) *Path {
	if i == NoIndex {
		return nil
	}
	return &a.paths[i]
}

// NodeCount and PathCount report how many records are currently live.
func (a *Arena) NodeCount() int { return len(a.nodes) }
func (a *Arena) PathCount() int { return len(a.paths) }

// PutString copies s into the arena's scratch buffer and returns the
// stored bytes. Used for synthesized surface text that has no
// corresponding span in the input sentence.
func (a *Arena) PutString(s string) []byte {
	start := len(a.buf)
	a.buf = append(a.buf, s...)
	return a.buf[start:len(a.buf):len(a.buf)]
}
