package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
)

var ErrNoWords = errors.New("word list is empty")

// LoadWords reads a whitespace separated word list from path.
func LoadWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word list: %w", err)
	}
	defer f.Close()

	return ReadWords(f)
}

func ReadWords(r io.Reader) ([]string, error) {
	var words []string

	s := bufio.NewScanner(r)
	s.Split(bufio.ScanWords)
	for s.Scan() {
		words = append(words, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to read word list: %w", err)
	}

	if len(words) == 0 {
		return nil, ErrNoWords
	}
	return words, nil
}

// Sampler draws words uniformly with replacement. Two samplers built from
// the same words and seed produce the same sequence.
type Sampler struct {
	words []string
	rng   *rand.Rand
}

func NewSampler(words []string, seed int64) *Sampler {
	return &Sampler{
		words: words,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (s *Sampler) Sample(n int) []string {
	if n <= 0 || len(s.words) == 0 {
		return nil
	}

	items := make([]string, n)
	for i := range items {
		items[i] = s.words[s.rng.Intn(len(s.words))]
	}
	return items
}

func (s *Sampler) Vocabulary() int {
	return len(s.words)
}

// Synthetic returns n distinct items "prefix-0" through "prefix-(n-1)".
func Synthetic(n int, prefix string) []string {
	if n <= 0 {
		return nil
	}

	items := make([]string, n)
	for i := range items {
		items[i] = prefix + "-" + strconv.Itoa(i)
	}
	return items
}
