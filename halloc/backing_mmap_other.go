//go:build !unix

package halloc

// BackingMmap returns a Backing that maps anonymous pages outside the Go heap. On
// platforms without a usable mmap this falls back to the heap backing.
func BackingMmap() Backing {
	return heapBacking{}
}
