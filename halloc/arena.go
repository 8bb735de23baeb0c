package halloc

import (
	"log/slog"

	"github.com/dolthub/swiss"
	"github.com/pkg/errors"

	"github.com/anvouk/halloc-go/halloc/internal/utils"
)

// Arena is a hierarchical, tagged-allocation memory manager. Every allocation is one of
// four kinds (see Kind) and may own children; freeing an allocation cascades through its
// entire ownership subtree. Chunk-carved kinds amortize backing overhead by sharing the
// owning branch's growable chunk list.
//
// An Arena is internally synchronized with a single coarse mutex unless created with
// CreateExternallySynchronized: the intrusive sibling and child links make finer-grained
// locking prone to lost updates, so consumers that opt out must serialize all calls.
type Arena struct {
	logger  *slog.Logger
	backing Backing
	mutex   utils.OptionalRWMutex

	chunkSize    int
	maxAlignment int
	maxBytes     int
	strictFree   bool

	handles    *swiss.Map[Handle, *node]
	nextHandle Handle
	root       *node

	// allocations and frees are diagnostic counters; they never drive control flow.
	allocations    int
	frees          int
	allocatedBytes int
}

func (a *Arena) ChunkSize() int    { return a.chunkSize }
func (a *Arena) MaxAlignment() int { return a.maxAlignment }

// AllocationCount returns the running count of successful allocations of any kind.
func (a *Arena) AllocationCount() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.allocations
}

// FreeCount returns the running count of released allocations, including chunk-carved
// allocations credited when their owning chunks are torn down.
func (a *Arena) FreeCount() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.frees
}

// AllocatedBytes returns the total bytes currently held from the backing, counting both
// chunks and resizable payloads.
func (a *Arena) AllocatedBytes() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.allocatedBytes
}

// IsValid reports whether h refers to a live allocation in this arena. Unlike every
// other operation, a stale or foreign handle here is an answer, not a contract
// violation.
func (a *Arena) IsValid(h Handle) bool {
	if h == NoHandle {
		return false
	}

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	_, ok := a.handles.Get(h)
	return ok
}

// KindOf returns the allocation kind recorded for h.
func (a *Arena) KindOf(h Handle) Kind {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.mustNode(h).kind
}

// Bytes returns the payload of h. For chunk-carved kinds this is a view into the owning
// branch's chunk; it remains valid until the owning branch is freed. For resizable kinds
// the slice is replaced by Realloc, so do not hold it across a resize.
func (a *Arena) Bytes(h Handle) []byte {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.mustNode(h).payload
}

// Destroy releases everything still held by the arena: the arena's own chunks first,
// then every surviving root subtree.
func (a *Arena) Destroy() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.teardownChunks(a.root)

	for c := a.root.firstChild; c != NoHandle; {
		child := a.mustNode(c)
		next := child.nextSibling
		a.cascadeFree(child)
		c = next
	}
	a.root.firstChild = NoHandle

	if a.handles.Count() != 0 {
		return errors.Errorf("%d allocation records survived arena teardown", a.handles.Count())
	}

	return nil
}
