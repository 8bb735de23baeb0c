package halloc_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/anvouk/halloc-go/halloc"
	"github.com/anvouk/halloc-go/memutils"
)

// failingBacking produces heap buffers until failAfter allocations have happened, then
// fails every request.
type failingBacking struct {
	allocated int
	failAfter int
}

func (b *failingBacking) Allocate(size int) ([]byte, error) {
	if b.allocated >= b.failAfter {
		return nil, errors.New("synthetic backing failure")
	}
	b.allocated++
	return make([]byte, size), nil
}

func (b *failingBacking) Free(buf []byte) {}

func TestManySmallCarvesDoNotOverlap(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{ChunkSize: 256})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(8)
	require.NoError(t, err)

	handles := make([]halloc.Handle, 0, 1000)
	for i := 0; i < 1000; i++ {
		h, err := arena.AllocNoFree(root, 50)
		require.NoError(t, err)

		buf := arena.Bytes(h)
		require.Len(t, buf, 50)
		for j := range buf {
			buf[j] = byte(i % 251)
		}
		handles = append(handles, h)
	}

	// no carve may share bytes with another live carve
	for i, h := range handles {
		for _, b := range arena.Bytes(h) {
			require.Equal(t, byte(i%251), b)
		}
	}

	// 1000 * 50 bytes cannot fit a single 256-byte chunk
	var stats memutils.Statistics
	arena.AddStatistics(&stats)
	require.Greater(t, stats.ChunkCount, 1)

	require.NoError(t, arena.Validate())
	require.NoError(t, arena.CheckCorruption())
}

func TestOversizedCarveGetsDedicatedChunk(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{ChunkSize: 128})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(8)
	require.NoError(t, err)

	big, err := arena.AllocRaw(root, 4096, 1)
	require.NoError(t, err)
	require.Len(t, arena.Bytes(big), 4096)

	// the oversized chunk was consumed immediately, so small carves still succeed
	small, err := arena.AllocRaw(root, 32, 1)
	require.NoError(t, err)
	require.Len(t, arena.Bytes(small), 32)

	require.NoError(t, arena.Validate())
}

func TestChunkReusePrefersSpaciousChunk(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{ChunkSize: 256})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(8)
	require.NoError(t, err)

	// force several chunks into existence, then verify every carve still lands in a
	// chunk with room for it
	for i := 0; i < 64; i++ {
		h, err := arena.AllocRaw(root, 100, 1)
		require.NoError(t, err)
		require.Len(t, arena.Bytes(h), 100)
	}

	var detailed memutils.DetailedStatistics
	detailed.Clear()
	arena.AddDetailedStatistics(&detailed)
	require.Greater(t, detailed.ChunkCount, 1)
	require.Equal(t, 65, detailed.AllocationCount)

	require.NoError(t, arena.Validate())
}

func TestBudgetExhaustionReturnsOutOfMemory(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{MaxBytes: 128})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	_, err := arena.AllocRoot(4096)
	require.Error(t, err)
	require.ErrorIs(t, err, memutils.OutOfMemoryError)

	// the failed allocation left nothing behind
	require.Equal(t, 0, arena.AllocationCount())
	require.Equal(t, 0, arena.AllocatedBytes())
	require.NoError(t, arena.Validate())
}

func TestBackingFailureReturnsOutOfMemory(t *testing.T) {
	backing := &failingBacking{failAfter: 1}
	arena := createArena(t, halloc.CreateOptions{Backing: backing})
	defer func() {
		require.NoError(t, arena.Destroy())
	}()

	root, err := arena.AllocRoot(16)
	require.NoError(t, err)

	before := arena.AllocationCount()
	_, err = arena.AllocNoFree(root, 16)
	require.Error(t, err)
	require.ErrorIs(t, err, memutils.OutOfMemoryError)
	require.Equal(t, before, arena.AllocationCount())
	require.NoError(t, arena.Validate())
}

func TestMmapBackingRoundTrip(t *testing.T) {
	arena := createArena(t, halloc.CreateOptions{Backing: halloc.BackingMmap()})

	root, err := arena.AllocRoot(64)
	require.NoError(t, err)

	buf := arena.Bytes(root)
	for i := range buf {
		buf[i] = 0xAB
	}

	h, err := arena.AllocRaw(root, 1024, 1)
	require.NoError(t, err)
	copy(arena.Bytes(h), "mapped bytes")

	require.NoError(t, arena.Destroy())
}
