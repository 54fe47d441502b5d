package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/asmit27rai/cardsight/internal/api"
	"github.com/asmit27rai/cardsight/internal/config"
	"github.com/asmit27rai/cardsight/internal/dataset"
	"github.com/asmit27rai/cardsight/internal/engine"
	"github.com/asmit27rai/cardsight/internal/probabilistic"
	"github.com/asmit27rai/cardsight/internal/stream"
	"github.com/asmit27rai/cardsight/pkg/estimates"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	log.Println("Starting CardSight cardinality estimation server...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var words []string
	if cfg.Dataset.WordsPath != "" {
		words, err = dataset.LoadWords(cfg.Dataset.WordsPath)
		if err != nil {
			log.Fatalf("Failed to load word list: %v", err)
		}
		log.Printf("Loaded %d words from %s", len(words), cfg.Dataset.WordsPath)
	}

	estimationEngine := engine.NewEstimationEngine(engine.EngineConfig{
		DefaultExponent:       uint8(cfg.Estimation.DefaultExponent),
		DefaultAlgorithm:      estimates.Algorithm(cfg.Estimation.DefaultAlgorithm),
		DefaultHasher:         cfg.Estimation.Hasher,
		MaxItemsPerCollection: cfg.Estimation.MaxItemsPerCollection,
		FillWorkers:           cfg.Estimation.FillWorkers,
	})
	log.Printf("Estimation engine initialized with b=%d, algorithm=%s, hasher=%s",
		cfg.Estimation.DefaultExponent, cfg.Estimation.DefaultAlgorithm, cfg.Estimation.Hasher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Enabled {
		processor, err := stream.NewProcessor(stream.ProcessorConfig{
			KafkaBrokers: cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			GroupID:      cfg.Kafka.GroupID,
			Sink:         estimationEngine,
		})
		if err != nil {
			log.Fatalf("Failed to create stream processor: %v", err)
		}

		go func() {
			if err := processor.Start(ctx); err != nil {
				log.Printf("Stream processor error: %v", err)
			}
		}()
	}

	router := mux.NewRouter()
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	api.RegisterRoutes(apiRouter, api.NewHandler(estimationEngine, words))
	router.HandleFunc("/health", healthCheck)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	printStartupSummary(cfg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status": "healthy", "timestamp": "%s"}`, time.Now().Format(time.RFC3339))
}

func printStartupSummary(cfg *config.Config) {
	b := uint8(cfg.Estimation.DefaultExponent)

	log.Println(strings.Repeat("=", 60))
	log.Println("CardSight Cardinality Estimation")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Server: http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	if cfg.Kafka.Enabled {
		log.Printf("Kafka: %v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	} else {
		log.Println("Kafka: disabled")
	}
	log.Printf("Default exponent: %d (%d registers, ±%.2f%% error)",
		b, uint64(1)<<b, probabilistic.StandardError(b)*100)
	log.Printf("Collection cap: %d items", cfg.Estimation.MaxItemsPerCollection)
	log.Println(strings.Repeat("=", 60))
	log.Println("Try these requests:")
	log.Println("   • POST /api/v1/demo/generate {\"collection\":\"demo\",\"count\":100000}")
	log.Println("   • GET  /api/v1/estimate?collection=demo&algorithm=compare&b=12")
	log.Println(strings.Repeat("=", 60))
}
