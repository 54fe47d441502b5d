package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/asmit27rai/cardsight/internal/hashing"
	"github.com/asmit27rai/cardsight/internal/probabilistic"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Estimation EstimationConfig `yaml:"estimation"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Experiment ExperimentConfig `yaml:"experiment"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `yaml:"port" env:"SERVER_PORT" default:"8080"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `yaml:"topic" default:"cardsight-items"`
	GroupID string   `yaml:"group_id" default:"cardsight-engine"`
}

type EstimationConfig struct {
	DefaultExponent       int    `yaml:"default_exponent" default:"14"`
	DefaultAlgorithm      string `yaml:"default_algorithm" default:"hyperloglog"`
	Hasher                string `yaml:"hasher" default:"murmur-oaat"`
	MaxItemsPerCollection int    `yaml:"max_items_per_collection" default:"10000000"`
	FillWorkers           int    `yaml:"fill_workers" default:"1"`
}

type DatasetConfig struct {
	WordsPath string `yaml:"words_path" env:"CARDSIGHT_WORDS"`
	Seed      int64  `yaml:"seed" default:"1"`
}

type ExperimentConfig struct {
	Sizes     []int   `yaml:"sizes"`
	Exponents []uint8 `yaml:"exponents"`
	Trials    int     `yaml:"trials" default:"1"`
	Workers   int     `yaml:"workers" default:"4"`
}

func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func Default() *Config {
	config := &Config{}

	config.Server.Host = "0.0.0.0"
	config.Server.Port = 8080
	config.Kafka.Brokers = []string{"localhost:9092"}
	config.Kafka.Topic = "cardsight-items"
	config.Kafka.GroupID = "cardsight-engine"
	config.Estimation.DefaultExponent = 14
	config.Estimation.DefaultAlgorithm = "hyperloglog"
	config.Estimation.Hasher = hashing.Default
	config.Estimation.MaxItemsPerCollection = 10000000
	config.Estimation.FillWorkers = 1
	config.Dataset.Seed = 1
	config.Experiment.Sizes = []int{1000, 10000, 100000}
	config.Experiment.Exponents = []uint8{4, 6, 8, 10, 12, 14, 16}
	config.Experiment.Trials = 1
	config.Experiment.Workers = 4

	return config
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	b := c.Estimation.DefaultExponent
	if b < probabilistic.MinHLLExponent || b > probabilistic.MaxHLLExponent {
		return fmt.Errorf("invalid default exponent %d: %w", b, probabilistic.ErrInvalidExponent)
	}

	switch c.Estimation.DefaultAlgorithm {
	case "exact", "loglog", "hyperloglog", "compare":
	default:
		return fmt.Errorf("invalid default algorithm: %q", c.Estimation.DefaultAlgorithm)
	}

	if _, err := hashing.Lookup(c.Estimation.Hasher); err != nil {
		return err
	}

	if c.Estimation.MaxItemsPerCollection <= 0 {
		return fmt.Errorf("max_items_per_collection must be positive, got %d", c.Estimation.MaxItemsPerCollection)
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka enabled without brokers or topic")
	}

	for _, n := range c.Experiment.Sizes {
		if n <= 0 {
			return fmt.Errorf("invalid experiment size: %d", n)
		}
	}
	for _, e := range c.Experiment.Exponents {
		if e < probabilistic.MinExponent || e > probabilistic.MaxHLLExponent {
			return fmt.Errorf("invalid experiment exponent %d: %w", e, probabilistic.ErrInvalidExponent)
		}
	}

	return nil
}

func applyEnv(config *Config) {
	config.Server.Host = getEnvOrDefault("SERVER_HOST", config.Server.Host)
	if port, err := strconv.Atoi(os.Getenv("SERVER_PORT")); err == nil {
		config.Server.Port = port
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		config.Kafka.Brokers = []string{brokers}
	}
	config.Dataset.WordsPath = getEnvOrDefault("CARDSIGHT_WORDS", config.Dataset.WordsPath)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
