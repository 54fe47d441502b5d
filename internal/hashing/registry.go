// Package hashing names the 32-bit hashers an estimate can be computed with.
package hashing

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/twmb/murmur3"
	"github.com/zeebo/xxh3"

	"github.com/asmit27rai/cardsight/internal/probabilistic"
)

const (
	MurmurOAAT = "murmur-oaat"
	FNV1a      = "fnv1a"
	XXH3       = "xxh3"
	XXHash     = "xxhash"
	Murmur3    = "murmur3"

	Default = MurmurOAAT
)

var ErrUnknownHasher = errors.New("unknown hasher")

var registry = map[string]probabilistic.Hasher{
	MurmurOAAT: probabilistic.MurmurOAAT,
	FNV1a:      fnv1a32,
	XXH3:       xxh3Upper32,
	XXHash:     xxhashFolded32,
	Murmur3:    murmur3.StringSum32,
}

// Lookup returns the hasher registered under name. An empty name selects
// the default.
func Lookup(name string) (probabilistic.Hasher, error) {
	if name == "" {
		name = Default
	}
	h, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
	}
	return h, nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fnv1a32(item string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(item))
	return h.Sum32()
}

// Upper bits of xxh3 mix best, so keep those.
func xxh3Upper32(item string) uint32 {
	return uint32(xxh3.HashString(item) >> 32)
}

func xxhashFolded32(item string) uint32 {
	h := xxhash.Sum64String(item)
	return uint32(h>>32) ^ uint32(h)
}
