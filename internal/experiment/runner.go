// Package experiment measures estimator error against exact counts over a
// grid of dataset sizes and bucket exponents.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/asmit27rai/cardsight/internal/hashing"
	"github.com/asmit27rai/cardsight/internal/probabilistic"
	"github.com/asmit27rai/cardsight/pkg/estimates"
)

var ErrNoWork = errors.New("experiment has no sizes or exponents")

// Source produces the items for one trial of one dataset size.
type Source interface {
	Sample(n int) []string
}

type Config struct {
	Sizes      []int
	Exponents  []uint8
	Algorithms []estimates.Algorithm
	Hasher     string
	Trials     int
	Workers    int

	// OnProgress is called after each finished cell with the number of
	// finished and total cells.
	OnProgress func(done, total int)
}

type Result struct {
	Size          int                 `json:"size"`
	Trial         int                 `json:"trial"`
	Exponent      uint8               `json:"b"`
	Algorithm     estimates.Algorithm `json:"algorithm"`
	Exact         uint64              `json:"exact"`
	Estimate      float64             `json:"estimate"`
	RelativeError float64             `json:"relative_error"`
	Duration      time.Duration       `json:"duration"`
	Err           string              `json:"error,omitempty"`
}

type Summary struct {
	Algorithm         estimates.Algorithm `json:"algorithm"`
	Exponent          uint8               `json:"b"`
	Runs              int                 `json:"runs"`
	MeanRelativeError float64             `json:"mean_relative_error"`
	MaxRelativeError  float64             `json:"max_relative_error"`
}

type Runner struct {
	config Config
	hash   probabilistic.Hasher
}

type dataset struct {
	size  int
	trial int
	items []string
	exact uint64
}

type cell struct {
	data      *dataset
	exponent  uint8
	algorithm estimates.Algorithm
}

func NewRunner(config Config) (*Runner, error) {
	if len(config.Sizes) == 0 || len(config.Exponents) == 0 {
		return nil, ErrNoWork
	}
	if len(config.Algorithms) == 0 {
		config.Algorithms = []estimates.Algorithm{estimates.LogLog, estimates.HyperLogLog}
	}
	for _, a := range config.Algorithms {
		if !a.IsApproximate() {
			return nil, fmt.Errorf("experiment algorithm must be approximate, got %q", a)
		}
	}
	if config.Trials <= 0 {
		config.Trials = 1
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}

	hash, err := hashing.Lookup(config.Hasher)
	if err != nil {
		return nil, err
	}

	return &Runner{config: config, hash: hash}, nil
}

// Run samples one dataset per (size, trial) and evaluates every exponent and
// algorithm over it. Cells run on a bounded pool of goroutines. An estimator
// failure is recorded on its row; cancellation stops the run.
func (r *Runner) Run(ctx context.Context, source Source) ([]Result, error) {
	var datasets []*dataset
	for _, size := range r.config.Sizes {
		for trial := 0; trial < r.config.Trials; trial++ {
			items := source.Sample(size)
			datasets = append(datasets, &dataset{
				size:  size,
				trial: trial,
				items: items,
				exact: probabilistic.NaiveCardinality(items),
			})
		}
	}

	cells := make(chan cell)
	results := make(chan Result)
	total := len(datasets) * len(r.config.Exponents) * len(r.config.Algorithms)

	log.Printf("[experiment] running %d cells on %d workers", total, r.config.Workers)

	var wg sync.WaitGroup
	for w := 0; w < r.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range cells {
				results <- r.evaluate(c)
			}
		}()
	}

	go func() {
		defer close(cells)
		for _, d := range datasets {
			for _, b := range r.config.Exponents {
				for _, a := range r.config.Algorithms {
					select {
					case cells <- cell{data: d, exponent: b, algorithm: a}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]Result, 0, total)
	for res := range results {
		collected = append(collected, res)
		if r.config.OnProgress != nil {
			r.config.OnProgress(len(collected), total)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(collected, func(i, j int) bool {
		a, b := collected[i], collected[j]
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		if a.Trial != b.Trial {
			return a.Trial < b.Trial
		}
		if a.Exponent != b.Exponent {
			return a.Exponent < b.Exponent
		}
		return a.Algorithm < b.Algorithm
	})

	return collected, nil
}

func (r *Runner) evaluate(c cell) Result {
	res := Result{
		Size:      c.data.size,
		Trial:     c.data.trial,
		Exponent:  c.exponent,
		Algorithm: c.algorithm,
		Exact:     c.data.exact,
	}

	start := time.Now()
	var err error
	switch c.algorithm {
	case estimates.LogLog:
		res.Estimate, err = probabilistic.LogLog(c.data.items, c.exponent, r.hash)
	case estimates.HyperLogLog:
		res.Estimate, err = probabilistic.HyperLogLog(c.data.items, c.exponent, r.hash)
	}
	res.Duration = time.Since(start)

	if err != nil {
		res.Err = err.Error()
		return res
	}
	if res.Exact > 0 {
		res.RelativeError = math.Abs(res.Estimate-float64(res.Exact)) / float64(res.Exact)
	}
	return res
}

// Summarize averages relative error per (algorithm, exponent), skipping
// failed rows. Summaries are ordered by algorithm then exponent.
func Summarize(results []Result) []Summary {
	type key struct {
		algorithm estimates.Algorithm
		exponent  uint8
	}

	sums := make(map[key]*Summary)
	for _, res := range results {
		if res.Err != "" {
			continue
		}
		k := key{res.Algorithm, res.Exponent}
		s, ok := sums[k]
		if !ok {
			s = &Summary{Algorithm: res.Algorithm, Exponent: res.Exponent}
			sums[k] = s
		}
		s.Runs++
		s.MeanRelativeError += res.RelativeError
		s.MaxRelativeError = math.Max(s.MaxRelativeError, res.RelativeError)
	}

	summaries := make([]Summary, 0, len(sums))
	for _, s := range sums {
		s.MeanRelativeError /= float64(s.Runs)
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Algorithm != summaries[j].Algorithm {
			return summaries[i].Algorithm < summaries[j].Algorithm
		}
		return summaries[i].Exponent < summaries[j].Exponent
	})
	return summaries
}
