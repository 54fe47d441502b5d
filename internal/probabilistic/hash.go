package probabilistic

// Hasher maps an item to a 32-bit hash. Estimators assume the output bits
// behave like independent fair coin flips.
type Hasher func(item string) uint32

const (
	murmurSeed = 0x1436781
	murmurMix  = 0x5bd1e995
)

// DefaultHasher is the hasher used when a caller does not supply one.
var DefaultHasher Hasher = MurmurOAAT

// MurmurOAAT is a one-byte-at-a-time hash built on Murmur's multiply/shift
// mix. Bytes are consumed in order, so the same bytes reordered hash
// differently.
func MurmurOAAT(item string) uint32 {
	h := uint32(murmurSeed)
	for i := 0; i < len(item); i++ {
		h ^= uint32(item[i])
		h *= murmurMix
		h ^= h >> 15
	}
	return h
}
