package halloc

import "math"

// Handle identifies a live allocation within an Arena. Handles are never reused: once an
// allocation has been freed, its handle permanently fails the validity check, so a stale
// handle can never silently alias a newer allocation.
type Handle uint64

const (
	// NoHandle is the "no allocation" sentinel. It stands in for a nil context when
	// allocating (resolving to the arena's own root list) and terminates sibling chains.
	NoHandle Handle = math.MaxUint64

	// rootHandle is the reserved handle of the arena's root sentinel node. It is kept out
	// of the handle table so it can never be freed or reassigned through the public API.
	rootHandle Handle = math.MaxUint64 - 1
)
