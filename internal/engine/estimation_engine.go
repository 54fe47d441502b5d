package engine

import (
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

var (
	ErrUnknownCollection   = errors.New("unknown collection")
	ErrCollectionFull      = errors.New("collection is full")
	ErrEmptyCollectionName = errors.New("collection name is required")
	ErrUnknownAlgorithm    = errors.New("unknown algorithm")
	ErrNilRequest          = errors.New("estimate request is required")
)

type EstimationEngine struct {
	config      EngineConfig
	collections map[string]*collection
	mutex       sync.RWMutex
	stats       EngineStats
}

type collection struct {
	items     []string
	updatedAt time.Time
}

type EngineConfig struct {
	DefaultExponent       uint8               `json:"default_exponent"`
	DefaultAlgorithm      estimates.Algorithm `json:"default_algorithm"`
	DefaultHasher         string              `json:"default_hasher"`
	MaxItemsPerCollection int                 `json:"max_items_per_collection"`
	FillWorkers           int                 `json:"fill_workers"`
}

type EngineStats struct {
	TotalEstimates  uint64        `json:"total_estimates"`
	ApproxEstimates uint64        `json:"approx_estimates"`
	FailedEstimates uint64        `json:"failed_estimates"`
	AvgLatency      time.Duration `json:"avg_latency"`
	ItemsIngested   uint64        `json:"items_ingested"`
	StartTime       time.Time     `json:"start_time"`
	LastUpdateTime  time.Time     `json:"last_update"`
}

func NewEstimationEngine(config EngineConfig) *EstimationEngine {
	if config.DefaultExponent == 0 {
		config.DefaultExponent = 14
	}
	if config.DefaultAlgorithm == "" {
		config.DefaultAlgorithm = estimates.HyperLogLog
	}
	if config.DefaultHasher == "" {
		config.DefaultHasher = hashing.Default
	}
	if config.MaxItemsPerCollection <= 0 {
		config.MaxItemsPerCollection = 10000000
	}

	now := time.Now()
	return &EstimationEngine{
		config:      config,
		collections: make(map[string]*collection),
		stats:       EngineStats{StartTime: now, LastUpdateTime: now},
	}
}

// Ingest appends items to the named collection, creating it on first use.
// Items past the collection cap are rejected as a whole batch.
func (e *EstimationEngine) Ingest(name string, items ...string) error {
	if name == "" {
		return ErrEmptyCollectionName
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	c, ok := e.collections[name]
	if !ok {
		c = &collection{}
		e.collections[name] = c
	}

	if len(c.items)+len(items) > e.config.MaxItemsPerCollection {
		return fmt.Errorf("%w: %s holds %d items, cap %d", ErrCollectionFull, name, len(c.items), e.config.MaxItemsPerCollection)
	}

	c.items = append(c.items, items...)
	c.updatedAt = time.Now()

	e.stats.ItemsIngested += uint64(len(items))
	e.stats.LastUpdateTime = c.updatedAt

	return nil
}

func (e *EstimationEngine) Drop(name string) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if _, ok := e.collections[name]; !ok {
		return false
	}
	delete(e.collections, name)
	log.Printf("[engine] dropped collection %s", name)
	return true
}

func (e *EstimationEngine) Collections() []estimates.CollectionInfo {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	infos := make([]estimates.CollectionInfo, 0, len(e.collections))
	for name, c := range e.collections {
		infos = append(infos, estimates.CollectionInfo{
			Name:      name,
			Items:     len(c.items),
			UpdatedAt: c.updatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (e *EstimationEngine) Execute(request *estimates.EstimateRequest) (*estimates.EstimateResult, error) {
	startTime := time.Now()

	e.mutex.Lock()
	e.stats.TotalEstimates++
	e.mutex.Unlock()

	result, err := e.processRequest(request)
	if err != nil {
		e.mutex.Lock()
		e.stats.FailedEstimates++
		e.mutex.Unlock()
		return nil, err
	}

	processingTime := time.Since(startTime)

	e.mutex.Lock()
	done := e.stats.TotalEstimates - e.stats.FailedEstimates
	e.stats.AvgLatency = time.Duration((int64(e.stats.AvgLatency)*int64(done-1) + int64(processingTime)) / int64(done))
	if result.IsApproximate {
		e.stats.ApproxEstimates++
	}
	e.mutex.Unlock()

	result.ProcessingTime = processingTime
	result.Timestamp = time.Now()

	return result, nil
}

func (e *EstimationEngine) processRequest(request *estimates.EstimateRequest) (*estimates.EstimateResult, error) {
	if request == nil {
		return nil, ErrNilRequest
	}

	algorithm := request.Algorithm
	if algorithm == "" {
		algorithm = e.config.DefaultAlgorithm
	}
	if !algorithm.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}

	b := request.Exponent
	if b == 0 {
		b = e.config.DefaultExponent
	}
	// Register vectors past 2^16 are not served; b is caller controlled.
	if algorithm != estimates.Exact && b > probabilistic.MaxHLLExponent {
		return nil, fmt.Errorf("%w: b=%d exceeds %d", probabilistic.ErrInvalidExponent, b, probabilistic.MaxHLLExponent)
	}

	hasherName := request.Hasher
	if hasherName == "" {
		hasherName = e.config.DefaultHasher
	}
	hash, err := hashing.Lookup(hasherName)
	if err != nil {
		return nil, err
	}

	items, err := e.snapshot(request.Collection)
	if err != nil {
		return nil, err
	}

	result := &estimates.EstimateResult{
		ID:            request.ID,
		Collection:    request.Collection,
		Algorithm:     algorithm,
		Items:         len(items),
		IsApproximate: algorithm.IsApproximate(),
	}
	if algorithm != estimates.Exact {
		result.Exponent = b
		result.Hasher = hasherName
	}

	switch algorithm {
	case estimates.Exact:
		result.Estimate = float64(probabilistic.NaiveCardinality(items))
	case estimates.LogLog:
		buckets, err := e.fill(items, b, hash)
		if err != nil {
			return nil, err
		}
		result.Estimate = probabilistic.LogLogFromBuckets(buckets)
		result.Registers = registerStats(buckets)
	case estimates.HyperLogLog:
		estimate, buckets, err := e.hyperLogLog(items, b, hash)
		if err != nil {
			return nil, err
		}
		stdErr := probabilistic.StandardError(b)
		result.Estimate = estimate
		result.StandardError = &stdErr
		result.Registers = registerStats(buckets)
	case estimates.Compare:
		comparison, err := e.compare(items, b, hash)
		if err != nil {
			return nil, err
		}
		result.Estimate = float64(comparison.Exact)
		result.Comparison = comparison
	}

	return result, nil
}

func (e *EstimationEngine) hyperLogLog(items []string, b uint8, hash probabilistic.Hasher) (float64, probabilistic.Buckets, error) {
	if err := probabilistic.CheckHLLExponent(b); err != nil {
		return 0, nil, err
	}
	buckets, err := e.fill(items, b, hash)
	if err != nil {
		return 0, nil, err
	}
	estimate, err := probabilistic.HyperLogLogFromBuckets(buckets)
	return estimate, buckets, err
}

func registerStats(buckets probabilistic.Buckets) *estimates.RegisterStats {
	stats := buckets.Stats()
	return &estimates.RegisterStats{
		Buckets:      stats.Buckets,
		EmptyBuckets: stats.EmptyBuckets,
		MaxRank:      stats.MaxRank,
		MeanRank:     stats.MeanRank,
	}
}

// compare runs every estimator over the same items. A HyperLogLog failure
// is reported in the comparison rather than failing the request, since
// LogLog accepts exponents HyperLogLog does not.
func (e *EstimationEngine) compare(items []string, b uint8, hash probabilistic.Hasher) (*estimates.Comparison, error) {
	buckets, err := e.fill(items, b, hash)
	if err != nil {
		return nil, err
	}

	exact := probabilistic.NaiveCardinality(items)
	comparison := &estimates.Comparison{
		Exact:  exact,
		LogLog: probabilistic.LogLogFromBuckets(buckets),
	}
	comparison.LogLogError = relativeError(comparison.LogLog, exact)

	hll, err := probabilistic.HyperLogLogFromBuckets(buckets)
	if err != nil {
		comparison.HyperLogLogFailure = err.Error()
		return comparison, nil
	}
	comparison.HyperLogLog = hll
	comparison.HyperLogLogError = relativeError(hll, exact)

	return comparison, nil
}

func (e *EstimationEngine) fill(items []string, b uint8, hash probabilistic.Hasher) (probabilistic.Buckets, error) {
	if e.config.FillWorkers > 1 {
		return probabilistic.FillBucketsParallel(items, b, hash, e.config.FillWorkers)
	}
	return probabilistic.FillBuckets(items, b, hash)
}

// snapshot returns the items currently in a collection. Ingest only appends
// past the returned length, so the slice stays valid without the lock.
func (e *EstimationEngine) snapshot(name string) ([]string, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	c, ok := e.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c.items[:len(c.items):len(c.items)], nil
}

func (e *EstimationEngine) GetStats() EngineStats {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.stats
}

func (e *EstimationEngine) SystemStats() estimates.SystemStats {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	stats := estimates.SystemStats{
		Timestamp:        time.Now(),
		Collections:      len(e.collections),
		ItemsIngested:    e.stats.ItemsIngested,
		TotalEstimates:   e.stats.TotalEstimates,
		FailedEstimates:  e.stats.FailedEstimates,
		AvgLatencyMillis: float64(e.stats.AvgLatency.Nanoseconds()) / 1e6,
	}
	if elapsed := time.Since(e.stats.StartTime).Seconds(); elapsed > 0 {
		stats.IngestRate = float64(e.stats.ItemsIngested) / elapsed
	}
	return stats
}

func (e *EstimationEngine) Config() EngineConfig {
	return e.config
}

func relativeError(estimate float64, exact uint64) float64 {
	if exact == 0 {
		return math.Abs(estimate)
	}
	return math.Abs(estimate-float64(exact)) / float64(exact)
}
