//go:build unix

package halloc

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type mmapBacking struct{}

func (mmapBacking) Allocate(size int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}

	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrapf(err, "anonymous mapping of %d bytes failed", size)
	}
	return buf, nil
}

func (mmapBacking) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	_ = unix.Munmap(buf)
}

// BackingMmap returns a Backing that maps anonymous pages outside the Go heap. Buffers
// handed out by this backing are invisible to the garbage collector and go back to the
// kernel on Free.
func BackingMmap() Backing {
	return mmapBacking{}
}
