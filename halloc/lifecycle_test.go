package halloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anvouk/halloc-go/halloc"
)

func TestFreeOnCarvedAllocationIsIgnored(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(8)
	require.NoError(t, err)

	a, err := arena.AllocNoFree(root, 8)
	require.NoError(t, err)
	b, err := arena.AllocNoFree(root, 8)
	require.NoError(t, err)

	// carved allocations only die with their owning branch
	arena.Free(a)
	arena.Free(b)
	require.True(t, arena.IsValid(a))
	require.True(t, arena.IsValid(b))
	require.Equal(t, 0, arena.FreeCount())

	arena.Free(root)
	require.False(t, arena.IsValid(a))
	require.False(t, arena.IsValid(b))
	require.False(t, arena.IsValid(root))
	require.Equal(t, 3, arena.AllocationCount())
	require.Equal(t, 3, arena.FreeCount())
}

func TestStrictFreePanicsOnCarvedAllocation(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{Flags: halloc.CreateStrictFree})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(8)
	require.NoError(t, err)

	a, err := arena.AllocNoFree(root, 8)
	require.NoError(t, err)

	require.Panics(t, func() {
		arena.Free(a)
	})

	arena.Free(root)
}

func TestFreeCascadesThroughSubtree(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(8)
	require.NoError(t, err)
	keep, err := arena.AllocRoot(8)
	require.NoError(t, err)

	descendants := make([]halloc.Handle, 0, 21)
	parents := []halloc.Handle{root}
	for depth := 0; depth < 2; depth++ {
		next := make([]halloc.Handle, 0, len(parents)*3)
		for _, p := range parents {
			for i := 0; i < 3; i++ {
				child, err := arena.Alloc(p, 8)
				require.NoError(t, err)
				descendants = append(descendants, child)
				next = append(next, child)
			}
		}
		parents = next
	}
	require.Len(t, descendants, 12)
	require.NoError(t, arena.Validate())

	arena.Free(root)
	for _, h := range descendants {
		require.False(t, arena.IsValid(h))
	}
	require.True(t, arena.IsValid(keep))
	require.Equal(t, 13, arena.FreeCount())
	require.NoError(t, arena.Validate())
}

func TestFreeNoHandleIsNoOp(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	arena.Free(halloc.NoHandle)
	require.Equal(t, 0, arena.FreeCount())
}

func TestFreeForeignHandlePanics(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	require.Panics(t, func() {
		arena.Free(halloc.Handle(999))
	})
}

func TestReassignMovesSubtree(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	oldParent, err := arena.AllocRoot(8)
	require.NoError(t, err)
	newParent, err := arena.AllocRoot(8)
	require.NoError(t, err)

	moved, err := arena.Alloc(oldParent, 8)
	require.NoError(t, err)
	grandchild, err := arena.Alloc(moved, 8)
	require.NoError(t, err)

	arena.Reassign(moved, newParent)
	require.NoError(t, arena.Validate())

	// the moved subtree now survives its old parent and dies with the new one
	arena.Free(oldParent)
	require.True(t, arena.IsValid(moved))
	require.True(t, arena.IsValid(grandchild))

	arena.Free(newParent)
	require.False(t, arena.IsValid(moved))
	require.False(t, arena.IsValid(grandchild))
}

func TestReassignToChunkedLeafTargetsItsOwner(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	a, err := arena.AllocRoot(8)
	require.NoError(t, err)
	b, err := arena.AllocRoot(8)
	require.NoError(t, err)

	chunked, err := arena.AllocNoFree(b, 8)
	require.NoError(t, err)

	moved, err := arena.Alloc(a, 8)
	require.NoError(t, err)

	arena.Reassign(moved, chunked)
	arena.Free(a)
	require.True(t, arena.IsValid(moved))

	arena.Free(b)
	require.False(t, arena.IsValid(moved))
}

func TestReassignRejectsCycles(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(8)
	require.NoError(t, err)
	child, err := arena.Alloc(root, 8)
	require.NoError(t, err)
	grandchild, err := arena.Alloc(child, 8)
	require.NoError(t, err)

	require.Panics(t, func() {
		arena.Reassign(root, grandchild)
	})
	require.Panics(t, func() {
		arena.Reassign(child, child)
	})
	require.NoError(t, arena.Validate())
}

func TestReassignRejectsCarvedAllocation(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(8)
	require.NoError(t, err)
	other, err := arena.AllocRoot(8)
	require.NoError(t, err)

	chunked, err := arena.AllocNoFree(root, 8)
	require.NoError(t, err)

	require.Panics(t, func() {
		arena.Reassign(chunked, other)
	})
}

func TestReallocGrowsAndPreservesContent(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(16)
	require.NoError(t, err)
	copy(arena.Bytes(root), "prefix survives!")

	child, err := arena.Alloc(root, 8)
	require.NoError(t, err)

	grown, err := arena.Realloc(root, 64)
	require.NoError(t, err)
	require.Equal(t, root, grown)
	require.Len(t, arena.Bytes(grown), 64)
	require.Equal(t, "prefix survives!", string(arena.Bytes(grown)[:16]))

	// children ride along with the resized block
	require.True(t, arena.IsValid(child))
	require.NoError(t, arena.Validate())

	arena.Free(grown)
	require.False(t, arena.IsValid(child))
}

func TestReallocShrinks(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(64)
	require.NoError(t, err)
	buf := arena.Bytes(root)
	for i := range buf {
		buf[i] = byte(i)
	}

	shrunk, err := arena.Realloc(root, 8)
	require.NoError(t, err)
	require.Len(t, arena.Bytes(shrunk), 8)
	for i, b := range arena.Bytes(shrunk) {
		require.Equal(t, byte(i), b)
	}
}

func TestReallocNoHandleAllocates(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	h, err := arena.Realloc(halloc.NoHandle, 32)
	require.NoError(t, err)
	require.True(t, arena.IsValid(h))
	require.Equal(t, halloc.KindBranch, arena.KindOf(h))
	require.Len(t, arena.Bytes(h), 32)
}

func TestReallocToZeroFrees(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(32)
	require.NoError(t, err)

	h, err := arena.Realloc(root, 0)
	require.NoError(t, err)
	require.Equal(t, halloc.NoHandle, h)
	require.False(t, arena.IsValid(root))
	require.Equal(t, 1, arena.FreeCount())
}

func TestReallocOutOfMemoryLeavesOriginal(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{Backing: &failingBacking{failAfter: 1}})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(16)
	require.NoError(t, err)
	copy(arena.Bytes(root), "still here")

	_, err = arena.Realloc(root, 4096)
	require.Error(t, err)
	require.True(t, arena.IsValid(root))
	require.Len(t, arena.Bytes(root), 16)
	require.Equal(t, "still here", string(arena.Bytes(root)[:10]))
}

func TestReallocRejectsCarvedAllocation(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(8)
	require.NoError(t, err)
	raw, err := arena.AllocRaw(root, 16, 1)
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = arena.Realloc(raw, 32)
	})
}
