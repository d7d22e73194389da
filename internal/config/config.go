package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Result store to serve.
	StorePath   string
	StoreFormat string // "csv" or "gpkg"
	StoreName   string // defaults to the store file name without extension

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Maxima export settings (cmd/export).
	KafkaBrokers    []string
	KafkaTopic      string
	ExportFilter    string
	ExportBatchSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	batchSize, err := parsePositiveInt("EXPORT_BATCH_SIZE", 100)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		StorePath:       os.Getenv("STORE_PATH"),
		StoreFormat:     envOrDefault("STORE_FORMAT", "csv"),
		StoreName:       os.Getenv("STORE_NAME"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		KafkaBrokers:    parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      envOrDefault("KAFKA_TOPIC", "model-result-maxima"),
		ExportFilter:    os.Getenv("EXPORT_FILTER"),
		ExportBatchSize: batchSize,
	}

	if cfg.StorePath == "" {
		return nil, errors.New("STORE_PATH is required")
	}
	if cfg.StoreFormat != "csv" && cfg.StoreFormat != "gpkg" {
		return nil, fmt.Errorf("invalid STORE_FORMAT %q: want csv or gpkg", cfg.StoreFormat)
	}
	if cfg.StoreName == "" {
		base := filepath.Base(cfg.StorePath)
		cfg.StoreName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
