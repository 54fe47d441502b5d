package probabilistic

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constHasher returns fixed hashes so register positions can be checked by hand.
func constHasher(values map[string]uint32) Hasher {
	return func(item string) uint32 { return values[item] }
}

func itemSeq(n int) []string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("item-%d", i)
	}
	return items
}

func TestFillBucketsRanks(t *testing.T) {
	hash := constHasher(map[string]uint32{
		"x": 0x00010fff, // bucket 0x0001, residual 0x0fff0000 -> rank 5
		"y": 0x0002ffff, // bucket 0x0002, rank 1
		"z": 0x00030000, // bucket 0x0003, residual zero -> rank 33
		"w": 0xff037000, // bucket 0xff03, rank 2
		"v": 0xff030800, // bucket 0xff03, rank 5
	})

	buckets, err := FillBuckets([]string{"x", "y", "z", "w", "v"}, 16, hash)
	require.NoError(t, err)
	require.Len(t, buckets, 1<<16)

	assert.Equal(t, uint8(5), buckets[0x0001])
	assert.Equal(t, uint8(1), buckets[0x0002])
	assert.Equal(t, uint8(MaxRank), buckets[0x0003])
	assert.Equal(t, uint8(5), buckets[0xff03])
	assert.Equal(t, uint64(1<<16-4), buckets.Empty())
}

func TestFillBucketsZeroResidualRank(t *testing.T) {
	hash := constHasher(map[string]uint32{"zero": 0})

	buckets, err := FillBuckets([]string{"zero"}, 4, hash)
	require.NoError(t, err)
	assert.Equal(t, uint8(MaxRank), buckets[0])

	// Residual bits below the bucket prefix are all zero.
	buckets, err = FillBuckets([]string{"prefix"}, 8, func(string) uint32 { return 0xab000000 })
	require.NoError(t, err)
	assert.Equal(t, uint8(MaxRank), buckets[0xab])
}

func TestFillBucketsExample(t *testing.T) {
	buckets, err := FillBuckets([]string{"a", "b", "a", "c", "b", "d"}, 4, MurmurOAAT)
	require.NoError(t, err)

	assert.Equal(t, Buckets{0, 0, 0, 1, 1, 0, 0, 0, 3, 2, 0, 0, 0, 0, 0, 0}, buckets)
	assert.Equal(t, uint8(4), buckets.Exponent())
}

func TestFillBucketsInvalid(t *testing.T) {
	_, err := FillBuckets(itemSeq(10), 0, MurmurOAAT)
	assert.ErrorIs(t, err, ErrInvalidExponent)

	_, err = FillBuckets(itemSeq(10), 33, MurmurOAAT)
	assert.ErrorIs(t, err, ErrInvalidExponent)

	_, err = FillBuckets(itemSeq(10), 8, nil)
	assert.ErrorIs(t, err, ErrNilHasher)
}

func TestFillBucketsRegisterRange(t *testing.T) {
	for _, b := range []uint8{1, 4, 8, 12} {
		buckets, err := FillBuckets(itemSeq(5000), b, MurmurOAAT)
		require.NoError(t, err)
		for i, r := range buckets {
			if r != 0 && (r < 1 || r > MaxRank) {
				t.Fatalf("b=%d register %d = %d out of range", b, i, r)
			}
		}
	}
}

func TestFillBucketsOrderIndependent(t *testing.T) {
	items := itemSeq(2000)
	want, err := FillBuckets(items, 10, MurmurOAAT)
	require.NoError(t, err)

	shuffled := append([]string(nil), items...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	got, err := FillBuckets(shuffled, 10, MurmurOAAT)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFillBucketsMonotonic(t *testing.T) {
	items := itemSeq(500)
	prev := make(Buckets, 1<<6)
	for n := 1; n <= len(items); n += 50 {
		cur, err := FillBuckets(items[:n], 6, MurmurOAAT)
		require.NoError(t, err)
		for i := range cur {
			if cur[i] < prev[i] {
				t.Fatalf("register %d decreased from %d to %d after %d items", i, prev[i], cur[i], n)
			}
		}
		prev = cur
	}
}

func TestFillBucketsParallelMatchesSequential(t *testing.T) {
	items := itemSeq(10007)
	want, err := FillBuckets(items, 12, MurmurOAAT)
	require.NoError(t, err)

	for _, workers := range []int{0, 1, 2, 3, 8, 64} {
		got, err := FillBucketsParallel(items, 12, MurmurOAAT, workers)
		require.NoError(t, err)
		assert.Equalf(t, want, got, "workers=%d", workers)
	}

	got, err := FillBucketsParallel(items[:3], 12, MurmurOAAT, 16)
	require.NoError(t, err)
	want, _ = FillBuckets(items[:3], 12, MurmurOAAT)
	assert.Equal(t, want, got)

	_, err = FillBucketsParallel(items, 0, MurmurOAAT, 4)
	assert.ErrorIs(t, err, ErrInvalidExponent)
}

func TestBucketStats(t *testing.T) {
	stats := Buckets{0, 3, 1, 0}.Stats()

	assert.Equal(t, uint8(2), stats.Exponent)
	assert.Equal(t, uint64(4), stats.Buckets)
	assert.Equal(t, uint64(2), stats.EmptyBuckets)
	assert.Equal(t, uint8(3), stats.MaxRank)
	assert.InDelta(t, 1.0, stats.MeanRank, 1e-12)
}
