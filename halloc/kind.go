package halloc

// Kind classifies every live allocation into one of four allocation strategies. The kind
// decides which header fields are meaningful, which lifecycle operations are legal, and
// where the payload bytes come from.
type Kind uint32

const (
	// KindBranch can have children, can be freed directly, and owns the private chunk list
	// that backs KindChunkedLeaf and KindRawSlice allocations made under it.
	KindBranch Kind = iota
	// KindChunkedLeaf is carved from the owning branch's chunk list. It can be passed as
	// the context for further allocations (they resolve to the owning branch), but it
	// cannot be freed individually: its bytes are released only when the owning branch's
	// chunks are torn down during a cascade.
	KindChunkedLeaf
	// KindNoChildLeaf is the reduced-overhead variant for allocations that are guaranteed
	// never to need children. It is freeable and resizable but cannot serve as an
	// allocation context.
	KindNoChildLeaf
	// KindRawSlice is a bare slice of a chunk with no structural links at all, intended
	// for string and byte-buffer payloads. Not individually freeable or resizable.
	KindRawSlice
)

var kindMapping = map[Kind]string{
	KindBranch:      "Branch",
	KindChunkedLeaf: "ChunkedLeaf",
	KindNoChildLeaf: "NoChildLeaf",
	KindRawSlice:    "RawSlice",
}

func (k Kind) String() string {
	return kindMapping[k]
}

// CanHaveChildren returns whether allocations of this kind may be passed as the context
// of further allocations. For KindChunkedLeaf the children are registered with the
// owning branch rather than the leaf itself.
func (k Kind) CanHaveChildren() bool {
	return k == KindBranch || k == KindChunkedLeaf
}

// FreeableDirectly returns whether allocations of this kind may be passed to Arena.Free.
// The other kinds are released only implicitly, when an owning branch cascades.
func (k Kind) FreeableDirectly() bool {
	return k == KindBranch || k == KindNoChildLeaf
}

// Resizable returns whether allocations of this kind may be passed to Arena.Realloc.
func (k Kind) Resizable() bool {
	return k == KindBranch || k == KindNoChildLeaf
}
