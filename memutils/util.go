package memutils

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}

// PackedAlignment returns the largest power-of-two alignment implied by size's lowest
// set bit. A 24-byte object is 8-aligned, a 33-byte object 1-aligned, and so on.
// Zero-size requests align to 1.
func PackedAlignment(size int) int {
	if size == 0 {
		return 1
	}
	return 1 << bits.TrailingZeros64(uint64(size))
}
