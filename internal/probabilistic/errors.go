package probabilistic

import "errors"

var (
	ErrInvalidExponent    = errors.New("bucket exponent out of range")
	ErrNilHasher          = errors.New("hasher is nil")
	ErrHashSpaceSaturated = errors.New("estimate saturates the 32-bit hash space")
)
