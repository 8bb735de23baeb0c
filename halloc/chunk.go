package halloc

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/anvouk/halloc-go/memutils"
)

// chunk is a single backing buffer subdivided from the high end downward. dataLeft is
// the only cursor: the bytes [dataLeft, len(buf)) have been carved out already, and a
// request fits exactly when aligning dataLeft-size down still lands at or above zero.
type chunk struct {
	next       *chunk
	buf        []byte
	dataLeft   int
	allocCount int

	// margins records the offset of each debug margin written below a carve. Empty
	// unless the debug_mem_utils build tag is present.
	margins []int
}

// tryCarve attempts to place size bytes at an offset aligned to align, with reserve
// bytes held immediately below the placement. Returns the payload offset on success.
// Carving from the high end down means the fit check is a single mask, not an
// iterative probe.
func (c *chunk) tryCarve(size, align, reserve int) (int, bool) {
	start := c.dataLeft - size
	if start < 0 {
		return 0, false
	}

	start = memutils.AlignDown(start, uint(align))
	start -= reserve
	if start < 0 {
		return 0, false
	}

	c.dataLeft = start
	return start + reserve, true
}

func (c *chunk) carvedView(offset, size int) []byte {
	if memutils.DebugMargin > 0 {
		memutils.WriteMagicValue(c.buf, offset-memutils.DebugMargin)
		c.margins = append(c.margins, offset-memutils.DebugMargin)
	}
	return c.buf[offset : offset+size : offset+size]
}

// sortChunks puts whichever of the first two chunks has more data left first. A local
// bubble, not a sort: it bounds the chunks probed per allocation without maintaining
// a heap.
func (n *node) sortChunks() {
	c := n.chunks
	if c == nil {
		return
	}
	d := c.next
	if d == nil {
		return
	}
	if c.dataLeft > d.dataLeft {
		return
	}

	c.next = d.next
	d.next = c
	n.chunks = d
}

// allocFromChunks carves size bytes at the requested alignment from owner's chunk list,
// reserving reserve bytes below the placement for the debug margin. The first chunk is
// tried, then the second, then a new chunk is allocated; the lookahead is bounded at two
// to keep allocation O(1) amortized.
func (a *Arena) allocFromChunks(owner *node, size, align, reserve int) ([]byte, error) {
	c := owner.chunks
	if c != nil && size <= a.chunkSize {
		if offset, ok := c.tryCarve(size, align, reserve); ok {
			c.allocCount++
			return c.carvedView(offset, size), nil
		}

		// try a second chunk to reduce wastage
		if c.next != nil {
			if offset, ok := c.next.tryCarve(size, align, reserve); ok {
				second := c.next
				second.allocCount++
				view := second.carvedView(offset, size)
				owner.sortChunks()
				return view, nil
			}

			// put the bigger chunk first, since the second will get buried
			owner.sortChunks()
		}
	}

	bufSize := a.chunkSize
	if size > bufSize {
		bufSize = size
	}
	// leave room so the aligned placement plus reserve always fits
	bufSize += align + reserve

	buf, err := a.acquireBuffer(bufSize)
	if err != nil {
		return nil, err
	}

	fresh := &chunk{buf: buf, dataLeft: len(buf)}
	offset, ok := fresh.tryCarve(size, align, reserve)
	if !ok {
		a.releaseBuffer(buf)
		return nil, errors.Errorf("carve of %d bytes at alignment %d failed from a fresh %d-byte chunk", size, align, len(buf))
	}
	fresh.allocCount = 1
	fresh.next = owner.chunks
	owner.chunks = fresh

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "allocated new chunk",
		slog.Int("chunk.bytes", len(buf)),
		slog.Uint64("owner", uint64(owner.handle)))

	// if the request consumed most of the block immediately, move the following chunk up
	if size >= a.chunkSize {
		owner.sortChunks()
	}

	return fresh.carvedView(offset, size), nil
}

// teardownChunks returns every chunk of the branch to the backing, credits the free
// counter with the live carves each chunk held, and drops the carved handle records.
func (a *Arena) teardownChunks(n *node) {
	for c := n.chunks; c != nil; {
		next := c.next
		a.frees += c.allocCount
		a.releaseBuffer(c.buf)
		c = next
	}
	n.chunks = nil

	for _, h := range n.carved {
		if carved, ok := a.handles.Get(h); ok {
			a.dropNode(carved)
		}
	}
	n.carved = nil
}

// acquireBuffer obtains a buffer from the backing, enforcing the arena budget first.
func (a *Arena) acquireBuffer(size int) ([]byte, error) {
	if a.maxBytes > 0 && a.allocatedBytes+size > a.maxBytes {
		return nil, errors.Wrapf(memutils.OutOfMemoryError, "arena budget of %d bytes cannot fit %d more", a.maxBytes, size)
	}

	buf, err := a.backing.Allocate(size)
	if err != nil {
		return nil, errors.Wrapf(memutils.OutOfMemoryError, "backing failed to produce a %d-byte buffer: %s", size, err)
	}

	a.allocatedBytes += len(buf)
	return buf, nil
}

func (a *Arena) releaseBuffer(buf []byte) {
	a.allocatedBytes -= len(buf)
	a.backing.Free(buf)
}
