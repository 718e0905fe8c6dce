package kafka_config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the Kafka producer configuration. The swap service only
// publishes events; there is no consumer side.
type Config struct {
	Brokers []string

	ProducerMaxAttempts  int
	ProducerBatchTimeout time.Duration
	ProducerRequireAcks  int    // -1 = all, 0 = none, 1 = leader only
	ProducerCompression  string // "none", "gzip", "snappy", "lz4", "zstd"
	ProducerAsync        bool
}

// Load creates a Kafka config from environment variables. Returns nil when
// KAFKA_BROKERS is unset: event publishing is optional.
func Load() *Config {
	brokersStr := os.Getenv(EnvKafkaBrokers)
	if brokersStr == "" {
		return nil
	}

	brokers := strings.Split(brokersStr, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	cfg := &Config{
		Brokers: brokers,

		ProducerMaxAttempts:  getEnvInt(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts),
		ProducerBatchTimeout: getEnvDuration(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout),
		ProducerRequireAcks:  getEnvInt(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks),
		ProducerCompression:  getEnvStr(EnvKafkaProducerCompression, DefaultProducerCompression),
		ProducerAsync:        getEnvBool(EnvKafkaProducerAsync, DefaultProducerAsync),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Kafka configuration validation failed: %v", err))
	}

	return cfg
}

func (cfg *Config) Validate() error {
	var errs []string

	if len(cfg.Brokers) == 0 {
		errs = append(errs, "At least one Kafka broker is required")
	}
	for i, broker := range cfg.Brokers {
		if broker == "" {
			errs = append(errs, fmt.Sprintf("Broker %d cannot be empty", i))
		}
	}

	if cfg.ProducerMaxAttempts <= 0 {
		errs = append(errs, fmt.Sprintf("ProducerMaxAttempts must be positive, got: %d", cfg.ProducerMaxAttempts))
	}
	if cfg.ProducerBatchTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ProducerBatchTimeout must be positive, got: %s", cfg.ProducerBatchTimeout))
	}

	validCompressions := map[string]bool{
		"none": true, "gzip": true, "snappy": true, "lz4": true, "zstd": true,
	}
	if !validCompressions[cfg.ProducerCompression] {
		errs = append(errs, fmt.Sprintf("ProducerCompression must be one of [none, gzip, snappy, lz4, zstd], got: %s", cfg.ProducerCompression))
	}

	validAcks := map[int]bool{-1: true, 0: true, 1: true}
	if !validAcks[cfg.ProducerRequireAcks] {
		errs = append(errs, fmt.Sprintf("ProducerRequireAcks must be -1, 0, or 1, got: %d", cfg.ProducerRequireAcks))
	}

	if len(errs) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, e := range errs {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, e)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func getEnvStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
