package halloc

import (
	"sync"

	"github.com/pkg/errors"
)

var nodePool = sync.Pool{
	New: func() any {
		return &node{}
	},
}

// node is the header record for a single allocation. Which fields are meaningful depends
// on the kind: branches use firstChild, chunks and carved; chunk-carved kinds use owner;
// the sibling links are maintained only for kinds that live on a sibling list.
type node struct {
	handle Handle
	kind   Kind

	parent      Handle
	firstChild  Handle
	nextSibling Handle
	prevSibling Handle

	// owner is the branch whose chunk list supplied this allocation's bytes
	// (KindChunkedLeaf and KindRawSlice only).
	owner Handle

	payload []byte

	// chunks is the head of the branch's private chunk list, ordered so the chunk with
	// the most data left is tried first.
	chunks *chunk
	// carved tracks the handles carved from this branch's chunks, so their records can
	// be dropped from the handle table when the chunks are torn down.
	carved []Handle
}

func (a *Arena) newNode(kind Kind) *node {
	n := nodePool.Get().(*node)
	n.kind = kind
	n.parent = NoHandle
	n.firstChild = NoHandle
	n.nextSibling = NoHandle
	n.prevSibling = NoHandle
	n.owner = NoHandle
	n.payload = nil
	n.chunks = nil
	n.carved = nil

	n.handle = a.nextHandle
	a.nextHandle++
	a.handles.Put(n.handle, n)
	return n
}

func (a *Arena) dropNode(n *node) {
	a.handles.Delete(n.handle)
	nodePool.Put(n)
}

// mustNode resolves a caller-provided handle. A handle that was never issued or has
// already been freed is a contract violation, not a runtime condition.
func (a *Arena) mustNode(h Handle) *node {
	n, ok := a.handles.Get(h)
	if !ok {
		panic(errors.Errorf("handle %d does not refer to a live allocation in this arena", h))
	}
	return n
}

// nodeOrRoot resolves internal links, which may legitimately point at the root sentinel.
func (a *Arena) nodeOrRoot(h Handle) *node {
	if h == rootHandle {
		return a.root
	}
	return a.mustNode(h)
}

// attach inserts child at the head of parent's sibling list and records parent as the
// child's owner slot.
func (a *Arena) attach(parent, child *node) {
	child.parent = parent.handle
	child.prevSibling = NoHandle
	child.nextSibling = parent.firstChild
	if parent.firstChild != NoHandle {
		a.mustNode(parent.firstChild).prevSibling = child.handle
	}
	parent.firstChild = child.handle
}

// detach splices the node out of whatever sibling list currently holds it. It does not
// inspect the node's children; that is the caller's responsibility.
func (a *Arena) detach(n *node) {
	if n.prevSibling != NoHandle {
		a.mustNode(n.prevSibling).nextSibling = n.nextSibling
	} else {
		a.nodeOrRoot(n.parent).firstChild = n.nextSibling
	}
	if n.nextSibling != NoHandle {
		a.mustNode(n.nextSibling).prevSibling = n.prevSibling
	}

	n.parent = NoHandle
	n.prevSibling = NoHandle
	n.nextSibling = NoHandle
}

// isDescendantOf walks up the parent chain from n and reports whether ancestor is on it.
func (a *Arena) isDescendantOf(n *node, ancestor *node) bool {
	for p := n.parent; p != NoHandle && p != rootHandle; {
		if p == ancestor.handle {
			return true
		}
		p = a.mustNode(p).parent
	}
	return false
}
