package probabilistic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMurmurOAATGoldenVectors(t *testing.T) {
	cases := map[string]uint32{
		"":      0x01436781,
		"a":     0x83a7522c,
		"b":     0x971d3c27,
		"apple": 0xdc58c87d,
	}

	for in, want := range cases {
		assert.Equalf(t, want, MurmurOAAT(in), "MurmurOAAT(%q)", in)
	}
}

func TestMurmurOAATByteOrderMatters(t *testing.T) {
	assert.NotEqual(t, MurmurOAAT("ab"), MurmurOAAT("ba"))
	assert.Equal(t, MurmurOAAT("ab"), MurmurOAAT("ab"))
}

func TestDefaultHasher(t *testing.T) {
	assert.Equal(t, MurmurOAAT("apple"), DefaultHasher("apple"))
}
