package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// OutOfMemoryError is the error returned when the backing allocator (or a configured arena
// budget) cannot satisfy a request. It is always recoverable at the call site: arena state
// is left unmodified when it is returned.
var OutOfMemoryError error = errors.New("the backing allocator could not satisfy the request")
