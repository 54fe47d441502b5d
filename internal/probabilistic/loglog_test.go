package probabilistic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLogExample(t *testing.T) {
	items := []string{"a", "b", "a", "c", "b", "d"}

	got, err := LogLog(items, 4, MurmurOAAT)
	require.NoError(t, err)
	assert.InDelta(t, 15.102657859440226, got, 1e-9)
	assert.True(t, got >= 1 && got <= 20, "estimate %f outside plausible range", got)

	again, err := LogLog(items, 4, MurmurOAAT)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestLogLogEmptyInput(t *testing.T) {
	// All registers are zero, so the mean is zero and the estimate is m*alpha.
	got, err := LogLog(nil, 4, MurmurOAAT)
	require.NoError(t, err)
	assert.InDelta(t, 16*logLogAlpha, got, 1e-12)
}

func TestLogLogInvalidExponent(t *testing.T) {
	_, err := LogLog(itemSeq(10), 0, MurmurOAAT)
	assert.ErrorIs(t, err, ErrInvalidExponent)

	_, err = LogLog(itemSeq(10), 4, nil)
	assert.ErrorIs(t, err, ErrNilHasher)
}

func TestLogLogFinite(t *testing.T) {
	items := itemSeq(20000)
	for b := uint8(1); b <= 16; b++ {
		got, err := LogLog(items, b, MurmurOAAT)
		require.NoError(t, err)
		assert.Falsef(t, math.IsNaN(got) || math.IsInf(got, 0) || got < 0, "b=%d estimate %f", b, got)
	}
}

func TestLogLogFromBuckets(t *testing.T) {
	assert.Equal(t, 0.0, LogLogFromBuckets(nil))
	assert.InDelta(t, 2*logLogAlpha*2, LogLogFromBuckets(Buckets{1, 1}), 1e-12)
}
