package probabilistic

import (
	"fmt"
	"math/bits"
	"sync"
)

const (
	hashBits = 32

	MinExponent = 1
	MaxExponent = hashBits

	// MaxRank is the rank of a hash whose residual bits are all zero.
	MaxRank = hashBits + 1
)

// Buckets is a register vector of length 2^b. Each register holds the
// maximum rank seen for its bucket, or 0 if no item landed there.
type Buckets []uint8

type BucketStats struct {
	Exponent     uint8   `json:"exponent"`
	Buckets      uint64  `json:"buckets"`
	EmptyBuckets uint64  `json:"empty_buckets"`
	MaxRank      uint8   `json:"max_rank"`
	MeanRank     float64 `json:"mean_rank"`
}

// FillBuckets hashes every item and records, per bucket, the highest rank
// observed. The top b bits of a hash select the bucket and the remaining
// bits, shifted to the top of the word, give the rank.
func FillBuckets(items []string, b uint8, hash Hasher) (Buckets, error) {
	if err := checkFill(b, MinExponent, MaxExponent, hash); err != nil {
		return nil, err
	}

	buckets := make(Buckets, uint64(1)<<b)
	buckets.fill(items, b, hash)
	return buckets, nil
}

// FillBucketsParallel produces the same vector as FillBuckets by filling one
// partial vector per worker over a contiguous shard of items and merging
// them with an element-wise max.
func FillBucketsParallel(items []string, b uint8, hash Hasher, workers int) (Buckets, error) {
	if err := checkFill(b, MinExponent, MaxExponent, hash); err != nil {
		return nil, err
	}

	if workers > len(items) {
		workers = len(items)
	}
	if workers <= 1 {
		return FillBuckets(items, b, hash)
	}

	m := uint64(1) << b
	partials := make([]Buckets, workers)
	shard := (len(items) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * shard
		hi := min(lo+shard, len(items))
		partials[w] = make(Buckets, m)
		if lo >= hi {
			continue
		}

		wg.Add(1)
		go func(dst Buckets, part []string) {
			defer wg.Done()
			dst.fill(part, b, hash)
		}(partials[w], items[lo:hi])
	}
	wg.Wait()

	merged := partials[0]
	for _, p := range partials[1:] {
		for i, r := range p {
			if r > merged[i] {
				merged[i] = r
			}
		}
	}
	return merged, nil
}

func (bk Buckets) fill(items []string, b uint8, hash Hasher) {
	for _, item := range items {
		h := hash(item)
		j := h >> (hashBits - b)
		// For b == 32 the shift yields 0 and the rank is MaxRank.
		w := h << b
		rank := uint8(bits.LeadingZeros32(w) + 1)
		if rank > bk[j] {
			bk[j] = rank
		}
	}
}

// Exponent returns b for a vector of 2^b registers.
func (bk Buckets) Exponent() uint8 {
	return uint8(bits.TrailingZeros64(uint64(len(bk))))
}

// Empty counts registers that never received an item.
func (bk Buckets) Empty() uint64 {
	var n uint64
	for _, r := range bk {
		if r == 0 {
			n++
		}
	}
	return n
}

func (bk Buckets) Stats() BucketStats {
	stats := BucketStats{
		Exponent: bk.Exponent(),
		Buckets:  uint64(len(bk)),
	}

	var sum uint64
	for _, r := range bk {
		if r == 0 {
			stats.EmptyBuckets++
		}
		if r > stats.MaxRank {
			stats.MaxRank = r
		}
		sum += uint64(r)
	}
	if len(bk) > 0 {
		stats.MeanRank = float64(sum) / float64(len(bk))
	}
	return stats
}

func checkFill(b, lo, hi uint8, hash Hasher) error {
	if b < lo || b > hi {
		return fmt.Errorf("%w: b=%d, want [%d, %d]", ErrInvalidExponent, b, lo, hi)
	}
	if hash == nil {
		return ErrNilHasher
	}
	return nil
}
