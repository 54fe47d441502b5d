package probabilistic

import (
	"fmt"
	"math"
)

const (
	MinHLLExponent = 4
	MaxHLLExponent = 16

	two32 = float64(1 << 32)
)

// HyperLogLog estimates cardinality from the harmonic mean of register
// values, with a logarithmic correction for small ranges and another near the
// size of the hash space.
func HyperLogLog(items []string, b uint8, hash Hasher) (float64, error) {
	if err := checkFill(b, MinHLLExponent, MaxHLLExponent, hash); err != nil {
		return 0, err
	}

	buckets, err := FillBuckets(items, b, hash)
	if err != nil {
		return 0, err
	}
	return HyperLogLogFromBuckets(buckets)
}

// CheckHLLExponent reports whether b is a register exponent HyperLogLog
// accepts.
func CheckHLLExponent(b uint8) error {
	if b < MinHLLExponent || b > MaxHLLExponent {
		return fmt.Errorf("%w: b=%d, want [%d, %d]", ErrInvalidExponent, b, MinHLLExponent, MaxHLLExponent)
	}
	return nil
}

// HyperLogLogFromBuckets reduces an already filled vector of 2^4 to 2^16
// registers.
func HyperLogLogFromBuckets(buckets Buckets) (float64, error) {
	b := buckets.Exponent()
	if len(buckets) == 0 || len(buckets) != 1<<b || b < MinHLLExponent || b > MaxHLLExponent {
		return 0, fmt.Errorf("%w: %d registers", ErrInvalidExponent, len(buckets))
	}

	m := float64(len(buckets))

	z := 0.0
	for _, r := range buckets {
		z += math.Pow(2, -float64(r))
	}
	estimate := alpha(len(buckets)) * m * m / z

	switch {
	case estimate < 2.5*m:
		// Small range: m*ln(m/occupied). An all-empty vector keeps the raw
		// estimate.
		occupied := uint64(len(buckets)) - buckets.Empty()
		if occupied == 0 {
			return estimate, nil
		}
		return smallRange(m, float64(occupied)), nil
	case estimate <= two32/30:
		return estimate, nil
	default:
		ratio := 1 - estimate/two32
		if ratio <= 0 {
			return 0, fmt.Errorf("%w: raw estimate %.0f", ErrHashSpaceSaturated, estimate)
		}
		return -two32 * math.Log(ratio), nil
	}
}

// StandardError is the relative standard error of a HyperLogLog estimate
// with 2^b registers.
func StandardError(b uint8) float64 {
	return 1.04 / math.Sqrt(float64(uint64(1)<<b))
}

func alpha(m int) float64 {
	switch m {
	case 16:
		return 0.678
	case 32:
		return 0.697
	case 64:
		return 0.709
	default:
		return 0.7213 / (1 + 1.079/float64(m))
	}
}

func smallRange(m, occupied float64) float64 {
	return m * math.Log(m/occupied)
}
