package halloc

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

// Free releases h and cascades through its entire ownership subtree. Freeing NoHandle
// does nothing. Freeing a chunk-carved allocation (KindChunkedLeaf, KindRawSlice) is a
// no-op by default: those kinds are released only when an ancestor's chunks are torn
// down. The CreateStrictFree flag turns that no-op into a fatal contract violation.
func (a *Arena) Free(h Handle) {
	if h == NoHandle {
		return
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	n := a.mustNode(h)
	if !n.kind.FreeableDirectly() {
		if a.strictFree {
			panic(errors.Errorf("allocation %d is a %s and cannot be freed independently", h, n.kind))
		}
		a.logger.LogAttrs(context.Background(), slog.LevelDebug, "ignored free of chunk-carved allocation",
			slog.Uint64("handle", uint64(h)),
			slog.String("kind", n.kind.String()))
		return
	}

	a.detach(n)
	a.cascadeFree(n)
}

// cascadeFree tears a subtree down depth-first: the node's chunks go first (chunk-carved
// allocations under it die with them), then each child subtree, then the node itself.
// Releasing the node's own storage before its children would leave the grandchild walk
// reading freed records.
func (a *Arena) cascadeFree(n *node) {
	a.teardownChunks(n)

	for c := n.firstChild; c != NoHandle; {
		child := a.mustNode(c)
		next := child.nextSibling
		a.cascadeFree(child)
		c = next
	}
	n.firstChild = NoHandle

	if n.payload != nil {
		a.releaseBuffer(n.payload)
		n.payload = nil
	}

	a.frees++
	a.dropNode(n)
}

// Realloc resizes a KindBranch or KindNoChildLeaf allocation in place. The handle and
// every link into the node are stable across the resize, so children and siblings need
// no repair. On out-of-memory the original allocation is left untouched.
//
// Realloc(NoHandle, size) behaves like AllocRoot(size); Realloc(h, 0) behaves like
// Free(h) and returns NoHandle.
func (a *Arena) Realloc(h Handle, newSize int) (Handle, error) {
	if h == NoHandle {
		return a.AllocRoot(newSize)
	}
	if newSize == 0 {
		a.Free(h)
		return NoHandle, nil
	}
	if newSize < 0 {
		panic(errors.Errorf("allocation size must not be negative, got %d", newSize))
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	n := a.mustNode(h)
	if !n.kind.Resizable() {
		panic(errors.Errorf("allocation %d is a %s and cannot be resized", h, n.kind))
	}

	replacement, err := a.acquireBuffer(newSize)
	if err != nil {
		return NoHandle, err
	}

	copy(replacement, n.payload)
	a.releaseBuffer(n.payload)
	n.payload = replacement

	return h, nil
}

// Reassign moves h under newContext without copying its payload or disturbing its own
// subtree. Only KindBranch and KindNoChildLeaf participate in sibling lists, so only
// they can change owners. Reassigning a node under itself or one of its descendants
// would create a cycle the cascade walk cannot terminate on, and is a fatal contract
// violation.
func (a *Arena) Reassign(h Handle, newContext Handle) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	n := a.mustNode(h)
	if !n.kind.FreeableDirectly() {
		panic(errors.Errorf("allocation %d is a %s and cannot change owners", h, n.kind))
	}

	src := a.resolveContext(newContext)
	if src == n || a.isDescendantOf(src, n) {
		panic(errors.Errorf("reassigning allocation %d under %d would create an ownership cycle", h, newContext))
	}

	a.detach(n)
	a.attach(src, n)
}
