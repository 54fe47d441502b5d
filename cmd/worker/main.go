package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/asmit27rai/cardsight/internal/config"
	"github.com/asmit27rai/cardsight/internal/dataset"
	"github.com/asmit27rai/cardsight/internal/stream"
)

// maxRate keeps the generate ticker interval at one microsecond or longer.
const maxRate = int(time.Second / time.Microsecond)

// ItemProducer publishes sampled words to Kafka for the server to ingest.
type ItemProducer struct {
	writer     *kafka.Writer
	sampler    *dataset.Sampler
	collection string
	rate       int
	batchSize  int
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	collection := flag.String("collection", stream.DefaultCollection, "Collection the items belong to")
	rate := flag.Int("rate", 100, "Batches per second in generate mode")
	batchSize := flag.Int("batch", 100, "Items per message")
	count := flag.Int("count", 10000, "Items to send in burst mode")
	flag.Parse()

	if err := validateFlags(*rate, *batchSize); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	log.Println("Starting CardSight item producer...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	words := dataset.Synthetic(50000, "word")
	if cfg.Dataset.WordsPath != "" {
		words, err = dataset.LoadWords(cfg.Dataset.WordsPath)
		if err != nil {
			log.Fatalf("Failed to load word list: %v", err)
		}
	}
	log.Printf("Sampling from %d words with seed %d", len(words), cfg.Dataset.Seed)

	producer := &ItemProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			BatchSize:    100,
		},
		sampler:    dataset.NewSampler(words, cfg.Dataset.Seed),
		collection: *collection,
		rate:       *rate,
		batchSize:  *batchSize,
	}
	defer producer.writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Shutting down item producer...")
		cancel()
	}()

	command := "generate"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	switch command {
	case "generate":
		producer.StartGenerating(ctx)
	case "burst":
		producer.GenerateBurst(ctx, *count)
	default:
		log.Fatalf("Unknown command: %s. Use 'generate' or 'burst'", command)
	}
}

func validateFlags(rate, batchSize int) error {
	if rate <= 0 || rate > maxRate {
		return fmt.Errorf("rate must be in [1, %d], got %d", maxRate, rate)
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch must be positive, got %d", batchSize)
	}
	return nil
}

func tickInterval(rate int) time.Duration {
	rate = max(1, min(rate, maxRate))
	return time.Second / time.Duration(rate)
}

func (p *ItemProducer) StartGenerating(ctx context.Context) {
	log.Printf("Starting continuous generation at %d batches/second of %d items", p.rate, p.batchSize)

	ticker := time.NewTicker(tickInterval(p.rate))
	defer ticker.Stop()

	sent := 0
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Sent %d items in %v", sent, time.Since(start))
			return

		case <-ticker.C:
			if err := p.send(ctx, p.batchSize); err != nil {
				log.Printf("Error sending batch: %v", err)
				continue
			}
			sent += p.batchSize

			if sent%(p.batchSize*100) == 0 {
				log.Printf("Sent %d items (%.1f/sec)", sent, float64(sent)/time.Since(start).Seconds())
			}
		}
	}
}

func (p *ItemProducer) GenerateBurst(ctx context.Context, count int) {
	if p.batchSize <= 0 {
		log.Printf("Refusing burst with batch size %d", p.batchSize)
		return
	}
	log.Printf("Generating burst of %d items...", count)

	start := time.Now()
	sent := 0

	for sent < count && ctx.Err() == nil {
		n := min(p.batchSize, count-sent)
		if err := p.send(ctx, n); err != nil {
			log.Printf("Error sending batch at %d: %v", sent, err)
			return
		}
		sent += n
	}

	elapsed := time.Since(start)
	log.Printf("Burst complete: %d items in %v (%.1f/sec)", sent, elapsed, float64(sent)/elapsed.Seconds())
}

func (p *ItemProducer) send(ctx context.Context, n int) error {
	message, err := stream.NewItemMessage(p.collection, p.sampler.Sample(n))
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, message)
}
