package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/asmit27rai/cardsight/internal/engine"
	"github.com/asmit27rai/cardsight/pkg/estimates"
)

const (
	DefaultCollection = "stream"

	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"
)

var ErrEmptyMessage = errors.New("message has no items")

// Ingester is the part of the engine the processor feeds.
type Ingester interface {
	Ingest(collection string, items ...string) error
}

var _ Ingester = (*engine.EstimationEngine)(nil)

type Processor struct {
	config ProcessorConfig
	reader *kafka.Reader
	sink   Ingester
	stats  processorCounters
}

type ProcessorConfig struct {
	KafkaBrokers      []string
	Topic             string
	GroupID           string
	DefaultCollection string
	Sink              Ingester
	StatsInterval     time.Duration
}

type ProcessorStats struct {
	MessagesProcessed uint64    `json:"messages_processed"`
	ItemsIngested     uint64    `json:"items_ingested"`
	ProcessingErrors  uint64    `json:"processing_errors"`
	LastProcessedTime time.Time `json:"last_processed_time"`
	ProcessingRate    float64   `json:"processing_rate"`
}

type processorCounters struct {
	messages  atomic.Uint64
	items     atomic.Uint64
	errors    atomic.Uint64
	lastNanos atomic.Int64
	rateBits  atomic.Uint64
}

func NewProcessor(config ProcessorConfig) (*Processor, error) {
	if len(config.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("no Kafka brokers specified")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("no Kafka topic specified")
	}
	if config.Sink == nil {
		return nil, fmt.Errorf("no ingest sink specified")
	}

	if config.GroupID == "" {
		config.GroupID = "cardsight-engine"
	}
	if config.DefaultCollection == "" {
		config.DefaultCollection = DefaultCollection
	}
	if config.StatsInterval <= 0 {
		config.StatsInterval = 30 * time.Second
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.KafkaBrokers,
		GroupID:        config.GroupID,
		Topic:          config.Topic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	log.Printf("Initialized Kafka reader for topic %s (group %s)", config.Topic, config.GroupID)

	return &Processor{
		config: config,
		reader: reader,
		sink:   config.Sink,
	}, nil
}

// Start consumes until ctx is cancelled. Bad messages are counted and
// skipped; only a closed reader ends the loop early.
func (p *Processor) Start(ctx context.Context) error {
	log.Printf("Starting stream processor on topic %s", p.config.Topic)

	go p.reportStatistics(ctx)

	defer func() {
		log.Printf("Closing reader for topic: %s", p.config.Topic)
		p.reader.Close()
	}()

	for {
		readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		message, err := p.reader.ReadMessage(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				log.Println("Stream processor shutting down...")
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return err
			}
			log.Printf("Error reading from topic %s: %v", p.config.Topic, err)
			p.stats.errors.Add(1)
			continue
		}

		if err := p.processMessage(message); err != nil {
			log.Printf("Error processing message from topic %s (offset %d): %v", p.config.Topic, message.Offset, err)
			p.stats.errors.Add(1)
		}
	}
}

func (p *Processor) processMessage(message kafka.Message) error {
	collection, items, err := DecodeMessage(message, p.config.DefaultCollection)
	if err != nil {
		return err
	}

	if err := p.sink.Ingest(collection, items...); err != nil {
		return fmt.Errorf("failed to ingest into %s: %w", collection, err)
	}

	p.stats.messages.Add(1)
	p.stats.items.Add(uint64(len(items)))
	p.stats.lastNanos.Store(time.Now().UnixNano())
	return nil
}

// DecodeMessage extracts the target collection and items from a message.
// JSON messages carry an estimates.ItemBatch; anything else is one raw
// item. The message key names the collection unless the batch does.
func DecodeMessage(message kafka.Message, defaultCollection string) (string, []string, error) {
	collection := string(message.Key)
	if collection == "" {
		collection = defaultCollection
	}

	if !isJSON(message) {
		if len(message.Value) == 0 {
			return "", nil, ErrEmptyMessage
		}
		return collection, []string{string(message.Value)}, nil
	}

	var batch estimates.ItemBatch
	if err := json.Unmarshal(message.Value, &batch); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal item batch: %w", err)
	}
	if len(batch.Items) == 0 {
		return "", nil, ErrEmptyMessage
	}
	if batch.Collection != "" {
		collection = batch.Collection
	}

	return collection, batch.Items, nil
}

func isJSON(message kafka.Message) bool {
	for _, h := range message.Headers {
		if h.Key == contentTypeHeader && string(h.Value) == contentTypeJSON {
			return true
		}
	}
	return false
}

func (p *Processor) reportStatistics(ctx context.Context) {
	ticker := time.NewTicker(p.config.StatsInterval)
	defer ticker.Stop()

	var lastMessageCount uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			currentCount := p.stats.messages.Load()
			rate := float64(currentCount-lastMessageCount) / p.config.StatsInterval.Seconds()
			p.stats.rateBits.Store(math.Float64bits(rate))
			lastMessageCount = currentCount

			log.Printf("Stream Processor Stats: Messages: %d, Items: %d, Errors: %d, Rate: %.2f msg/s",
				currentCount,
				p.stats.items.Load(),
				p.stats.errors.Load(),
				rate)
		}
	}
}

func (p *Processor) GetStats() ProcessorStats {
	stats := ProcessorStats{
		MessagesProcessed: p.stats.messages.Load(),
		ItemsIngested:     p.stats.items.Load(),
		ProcessingErrors:  p.stats.errors.Load(),
		ProcessingRate:    math.Float64frombits(p.stats.rateBits.Load()),
	}
	if nanos := p.stats.lastNanos.Load(); nanos > 0 {
		stats.LastProcessedTime = time.Unix(0, nanos)
	}
	return stats
}

// NewItemMessage builds the message a producer sends for a batch of items.
func NewItemMessage(collection string, items []string) (kafka.Message, error) {
	data, err := json.Marshal(estimates.ItemBatch{Collection: collection, Items: items})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal item batch: %w", err)
	}

	return kafka.Message{
		Key:     []byte(collection),
		Value:   data,
		Headers: []kafka.Header{{Key: contentTypeHeader, Value: []byte(contentTypeJSON)}},
		Time:    time.Now(),
	}, nil
}
