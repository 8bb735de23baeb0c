package halloc

import (
	"github.com/pkg/errors"

	"github.com/anvouk/halloc-go/memutils"
)

const (
	// leanHeaderAlignment is the widest alignment the reduced KindNoChildLeaf header can
	// honor; requests beyond it are upgraded to KindBranch. See CanUseLeanHeader.
	leanHeaderAlignment int = 8
	// chunkedLeafMinAlignment keeps chunk-carved leaf headers at least pointer-aligned.
	chunkedLeafMinAlignment int = 8
)

// AllocRoot allocates a new parentless, resizable, freeable, child-capable block.
func (a *Arena) AllocRoot(size int) (Handle, error) {
	return a.allocate(NoHandle, size, KindBranch, -a.maxAlignment)
}

// Alloc allocates a resizable, freeable, child-capable block attached under context.
func (a *Arena) Alloc(context Handle, size int) (Handle, error) {
	return a.allocate(context, size, KindBranch, -a.maxAlignment)
}

// AllocNoFree allocates a child-capable block carved from context's chunk list. It
// cannot be freed individually, only as part of an ancestor's cascade.
func (a *Arena) AllocNoFree(context Handle, size int) (Handle, error) {
	return a.allocate(context, size, KindChunkedLeaf, -a.maxAlignment)
}

// AllocLeaf allocates a freeable, resizable block that can never have children, behind
// a reduced header. If automatic alignment selection exceeds the lean header's budget
// the block is silently upgraded to KindBranch; use CanUseLeanHeader to check first.
func (a *Arena) AllocLeaf(context Handle, size int) (Handle, error) {
	return a.allocate(context, size, KindNoChildLeaf, -a.maxAlignment)
}

// AllocRaw carves a bare slice from context's chunk list for byte-buffer payloads.
// align <= 0 selects the alignment automatically from size.
func (a *Arena) AllocRaw(context Handle, size int, align int) (Handle, error) {
	return a.allocate(context, size, KindRawSlice, align)
}

// AllocString carves an unaligned slice from context's chunk list, the cheapest way to
// store string payloads.
func (a *Arena) AllocString(context Handle, size int) (Handle, error) {
	return a.allocate(context, size, KindRawSlice, 1)
}

// CanUseLeanHeader reports whether a KindNoChildLeaf request of this size and alignment
// would actually stay behind the reduced header, or be upgraded to KindBranch because
// the resolved alignment exceeds the lean header's alignment budget.
func (a *Arena) CanUseLeanHeader(size int, align int) bool {
	return a.resolveAlignment(size, align) <= leanHeaderAlignment
}

// resolveContext maps a caller-provided context handle to the branch that will own the
// new allocation.
func (a *Arena) resolveContext(context Handle) *node {
	if context == NoHandle {
		return a.root
	}

	n := a.mustNode(context)
	switch n.kind {
	case KindBranch:
		return n
	case KindChunkedLeaf, KindRawSlice:
		// chunk-carved allocations belong to whichever branch supplied their chunk
		return a.nodeOrRoot(n.owner)
	default:
		panic(errors.Errorf("allocation %d is a %s and cannot host children", context, n.kind))
	}
}

// resolveAlignment applies automatic alignment selection. A positive align is used
// as-is; align <= 0 picks the packed alignment implied by size, capped by the arena
// maximum; a negative align caps the automatic value at -align instead of forcing one.
func (a *Arena) resolveAlignment(size, align int) int {
	if align > 0 {
		err := memutils.CheckPow2(align, "alignment")
		if err != nil {
			panic(err)
		}
		return align
	}

	proposed := memutils.PackedAlignment(size)
	if proposed > a.maxAlignment {
		proposed = a.maxAlignment
	}

	// a negative alignment means "don't align any larger than this":
	// -16 allows 1, 2, 4, 8 or 16
	if align < 0 && proposed > -align {
		proposed = -align
	}

	memutils.DebugCheckPow2(proposed, "resolved alignment")
	return proposed
}

func (a *Arena) allocate(context Handle, size int, kind Kind, align int) (Handle, error) {
	if size < 0 {
		panic(errors.Errorf("allocation size must not be negative, got %d", size))
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	memutils.DebugValidate(unlockedValidation{a})

	src := a.resolveContext(context)
	align = a.resolveAlignment(size, align)

	if kind == KindNoChildLeaf && align > leanHeaderAlignment {
		kind = KindBranch
	}

	var n *node
	switch kind {
	case KindBranch, KindNoChildLeaf:
		payload, err := a.acquireBuffer(size)
		if err != nil {
			return NoHandle, err
		}
		n = a.newNode(kind)
		n.payload = payload
		a.attach(src, n)

	case KindChunkedLeaf:
		if align < chunkedLeafMinAlignment {
			align = chunkedLeafMinAlignment
		}
		view, err := a.allocFromChunks(src, size, align, memutils.DebugMargin)
		if err != nil {
			return NoHandle, err
		}
		n = a.newNode(kind)
		n.owner = src.handle
		n.payload = view
		src.carved = append(src.carved, n.handle)

	case KindRawSlice:
		view, err := a.allocFromChunks(src, size, align, memutils.DebugMargin)
		if err != nil {
			return NoHandle, err
		}
		n = a.newNode(kind)
		n.owner = src.handle
		n.payload = view
		src.carved = append(src.carved, n.handle)

	default:
		panic(errors.Errorf("unknown allocation kind %d", kind))
	}

	a.allocations++
	return n.handle, nil
}
