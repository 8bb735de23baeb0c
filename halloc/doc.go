// Package halloc implements a hierarchical, tagged-allocation memory arena. Callers
// allocate a root block, attach child blocks under it (or under any descendant), and
// free an entire subtree in one call by freeing its root.
//
// Every allocation has one of four kinds, trading capability for overhead: KindBranch
// blocks own a private chunk list and can parent anything; KindChunkedLeaf and
// KindRawSlice are carved from an owning branch's chunks and die only with it;
// KindNoChildLeaf is a reduced-overhead block that can never have children. Allocations
// are addressed by stable handles rather than raw pointers: a freed or foreign handle
// fails validation instead of aliasing live memory.
//
// Out-of-memory (from the backing or a configured byte budget) is returned as an error
// that leaves the arena untouched. Everything else that can go wrong (freeing through a
// dead handle, resizing a carved slice, reassigning a block under its own descendant)
// is a caller bug and panics.
package halloc
