package halloc

// Backing supplies and releases the raw buffers that chunks and resizable payloads are
// built from. Implementations do not need to be goroutine-safe: the owning arena
// serializes every call.
type Backing interface {
	// Allocate returns a zeroed buffer of at least size bytes, or an error if the
	// backing cannot produce one.
	Allocate(size int) ([]byte, error)
	// Free releases a buffer previously returned by Allocate. The slice passed in is
	// always the exact slice Allocate returned.
	Free(buf []byte)
}

type heapBacking struct{}

func (heapBacking) Allocate(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (heapBacking) Free(buf []byte) {}

// BackingHeap returns the default Backing, which takes buffers from the Go heap and
// leaves reclamation to the garbage collector.
func BackingHeap() Backing {
	return heapBacking{}
}
