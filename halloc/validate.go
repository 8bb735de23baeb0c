package halloc

import (
	"github.com/pkg/errors"

	"github.com/anvouk/halloc-go/memutils"
)

// unlockedValidation adapts the arena to memutils.Validatable for use from code paths
// that already hold the arena mutex.
type unlockedValidation struct {
	arena *Arena
}

func (v unlockedValidation) Validate() error {
	return v.arena.validateUnlocked()
}

// Validate performs internal consistency checks on the whole ownership graph. When the
// implementation is functioning correctly it should not be possible for this method to
// return an error, but it may assist in diagnosing issues.
func (a *Arena) Validate() error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.validateUnlocked()
}

func (a *Arena) validateUnlocked() error {
	if a.frees > a.allocations {
		return errors.Errorf("the free counter (%d) has overtaken the allocation counter (%d)", a.frees, a.allocations)
	}
	if a.allocatedBytes < 0 {
		return errors.Errorf("backing byte accounting went negative: %d", a.allocatedBytes)
	}

	return a.validateNode(a.root)
}

// ValidateSubtree checks link reciprocity and parent back-references for h's entire
// subtree.
func (a *Arena) ValidateSubtree(h Handle) error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	n, ok := a.handles.Get(h)
	if !ok {
		return errors.Errorf("handle %d does not refer to a live allocation in this arena", h)
	}

	return a.validateNode(n)
}

func (a *Arena) validateNode(n *node) error {
	if n.kind == KindChunkedLeaf || n.kind == KindRawSlice {
		if n.owner != rootHandle {
			_, ok := a.handles.Get(n.owner)
			if !ok {
				return errors.Errorf("allocation %d is carved from a chunk owned by %d, which is not live", n.handle, n.owner)
			}
		}
		return nil
	}

	if n.prevSibling != NoHandle {
		prev, ok := a.handles.Get(n.prevSibling)
		if !ok {
			return errors.Errorf("allocation %d has a dead previous sibling %d", n.handle, n.prevSibling)
		}
		if prev.nextSibling != n.handle {
			return errors.Errorf("allocation %d lists %d as its previous sibling, but the reverse reference is broken", n.handle, n.prevSibling)
		}
	} else if n.parent != NoHandle {
		if a.nodeOrRoot(n.parent).firstChild != n.handle {
			return errors.Errorf("allocation %d is the head of its sibling list but its parent %d does not list it first", n.handle, n.parent)
		}
	}

	if n.nextSibling != NoHandle {
		next, ok := a.handles.Get(n.nextSibling)
		if !ok {
			return errors.Errorf("allocation %d has a dead next sibling %d", n.handle, n.nextSibling)
		}
		if next.prevSibling != n.handle {
			return errors.Errorf("allocation %d lists %d as its next sibling, but the reverse reference is broken", n.handle, n.nextSibling)
		}
	}

	for c := n.firstChild; c != NoHandle; {
		child, ok := a.handles.Get(c)
		if !ok {
			return errors.Errorf("allocation %d has a dead child %d", n.handle, c)
		}
		if child.parent != n.handle {
			return errors.Errorf("allocation %d is listed as a child of %d but records %d as its parent", c, n.handle, child.parent)
		}

		err := a.validateNode(child)
		if err != nil {
			return err
		}
		c = child.nextSibling
	}

	return nil
}

// CheckCorruption verifies the debug margins written below every chunk carve. Margins
// are only written when the module is built with the debug_mem_utils build tag; without
// it this method returns nil immediately.
func (a *Arena) CheckCorruption() error {
	if memutils.DebugMargin == 0 {
		return nil
	}

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	err := a.chunksCorruption(a.root)
	if err != nil {
		return err
	}

	a.handles.Iter(func(h Handle, n *node) bool {
		if n.chunks != nil {
			err = a.chunksCorruption(n)
		}
		return err != nil
	})

	return err
}

func (a *Arena) chunksCorruption(n *node) error {
	for c := n.chunks; c != nil; c = c.next {
		for _, offset := range c.margins {
			if !memutils.ValidateMagicValue(c.buf, offset) {
				return errors.Errorf("corruption detected in a chunk owned by allocation %d at offset %d", n.handle, offset)
			}
		}
	}

	return nil
}
