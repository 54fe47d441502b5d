package estimates

import (
	"encoding/json"
	"time"
)

type Algorithm string

const (
	Exact       Algorithm = "exact"
	LogLog      Algorithm = "loglog"
	HyperLogLog Algorithm = "hyperloglog"
	Compare     Algorithm = "compare"
)

func (a Algorithm) IsApproximate() bool {
	return a == LogLog || a == HyperLogLog
}

func (a Algorithm) Valid() bool {
	switch a {
	case Exact, LogLog, HyperLogLog, Compare:
		return true
	}
	return false
}

// ItemBatch is the payload for ingesting items, over HTTP or Kafka.
type ItemBatch struct {
	Collection string   `json:"collection,omitempty"`
	Items      []string `json:"items"`
}

type EstimateRequest struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Algorithm  Algorithm `json:"algorithm"`
	Exponent   uint8     `json:"b,omitempty"`
	Hasher     string    `json:"hasher,omitempty"`
}

type EstimateResult struct {
	ID             string         `json:"id"`
	Collection     string         `json:"collection"`
	Algorithm      Algorithm      `json:"algorithm"`
	Exponent       uint8          `json:"b,omitempty"`
	Hasher         string         `json:"hasher,omitempty"`
	Items          int            `json:"items"`
	Estimate       float64        `json:"estimate"`
	StandardError  *float64       `json:"standard_error,omitempty"`
	Registers      *RegisterStats `json:"registers,omitempty"`
	Comparison     *Comparison    `json:"comparison,omitempty"`
	IsApproximate  bool           `json:"is_approximate"`
	ProcessingTime time.Duration  `json:"processing_time"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Comparison holds every estimator's answer for one collection.
type Comparison struct {
	Exact              uint64  `json:"exact"`
	LogLog             float64 `json:"loglog"`
	LogLogError        float64 `json:"loglog_relative_error"`
	HyperLogLog        float64 `json:"hyperloglog"`
	HyperLogLogError   float64 `json:"hyperloglog_relative_error"`
	HyperLogLogFailure string  `json:"hyperloglog_failure,omitempty"`
}

// RegisterStats describes the register vector an estimate was reduced from.
type RegisterStats struct {
	Buckets      uint64  `json:"buckets"`
	EmptyBuckets uint64  `json:"empty_buckets"`
	MaxRank      uint8   `json:"max_rank"`
	MeanRank     float64 `json:"mean_rank"`
}

type CollectionInfo struct {
	Name      string    `json:"name"`
	Items     int       `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SystemStats struct {
	Timestamp        time.Time `json:"timestamp"`
	Collections      int       `json:"collections"`
	ItemsIngested    uint64    `json:"items_ingested"`
	TotalEstimates   uint64    `json:"total_estimates"`
	FailedEstimates  uint64    `json:"failed_estimates"`
	AvgLatencyMillis float64   `json:"avg_latency_ms"`
	IngestRate       float64   `json:"ingest_rate"` // items/second
}

func (r *EstimateResult) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	return string(data), err
}
