package probabilistic

import "math"

const logLogAlpha = 0.697

// LogLog estimates cardinality from the arithmetic mean of register values.
// Empty registers stay in the mean, which biases sparse inputs downward.
func LogLog(items []string, b uint8, hash Hasher) (float64, error) {
	buckets, err := FillBuckets(items, b, hash)
	if err != nil {
		return 0, err
	}
	return LogLogFromBuckets(buckets), nil
}

// LogLogFromBuckets reduces an already filled vector. It returns 0 for an
// empty vector.
func LogLogFromBuckets(buckets Buckets) float64 {
	if len(buckets) == 0 {
		return 0
	}

	var sum uint64
	for _, r := range buckets {
		sum += uint64(r)
	}

	m := float64(len(buckets))
	return m * logLogAlpha * math.Pow(2, float64(sum)/m)
}
