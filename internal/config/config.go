package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Data sources for the station catalog and climatology.
const (
	DataSourceFile     = "file"
	DataSourcePostgres = "postgres"
)

// Model kinds.
const (
	ModelKindNetwork = "network"
	ModelKindServing = "serving"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Station catalog and climatology.
	DataSource        string
	DataDir           string
	DatabaseURL       string
	CoverageThreshold float64

	// Size model.
	ModelKind    string
	ModelPath    string
	ModelTimeout time.Duration
	ServingURL   string
	ServingModel string
	ServingRPS   float64
	ServingBurst int

	// Prediction event publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Mapbox geocoding fallback for unknown counties.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	modelTimeout, err := parseDuration("MODEL_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	threshold, err := parsePositiveFloat("COVERAGE_THRESHOLD", 1.0)
	if err != nil {
		return nil, err
	}

	servingRPS, err := parsePositiveFloat("SERVING_RPS", 5)
	if err != nil {
		return nil, err
	}

	servingBurst, err := parsePositiveInt("SERVING_BURST", 10)
	if err != nil {
		return nil, err
	}

	mapboxCacheSize, err := parsePositiveInt("MAPBOX_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataSource:        sharedcfg.EnvOrDefault("DATA_SOURCE", DataSourceFile),
		DataDir:           sharedcfg.EnvOrDefault("DATA_DIR", "./data"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		CoverageThreshold: threshold,

		ModelKind:    sharedcfg.EnvOrDefault("MODEL_KIND", ModelKindNetwork),
		ModelPath:    sharedcfg.EnvOrDefault("MODEL_PATH", "./data/model.json"),
		ModelTimeout: modelTimeout,
		ServingURL:   os.Getenv("SERVING_URL"),
		ServingModel: sharedcfg.EnvOrDefault("SERVING_MODEL", "firewhere"),
		ServingRPS:   servingRPS,
		ServingBurst: servingBurst,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "fire-size-predictions"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: mapboxCacheSize,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DataSource {
	case DataSourceFile:
		if c.DataDir == "" {
			return errors.New("DATA_DIR is required when DATA_SOURCE is file")
		}
	case DataSourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DATA_SOURCE is postgres")
		}
	default:
		return fmt.Errorf("invalid DATA_SOURCE %q: expected %s or %s", c.DataSource, DataSourceFile, DataSourcePostgres)
	}

	switch c.ModelKind {
	case ModelKindNetwork:
		if c.ModelPath == "" {
			return errors.New("MODEL_PATH is required when MODEL_KIND is network")
		}
	case ModelKindServing:
		if c.ServingURL == "" {
			return errors.New("SERVING_URL is required when MODEL_KIND is serving")
		}
	default:
		return fmt.Errorf("invalid MODEL_KIND %q: expected %s or %s", c.ModelKind, ModelKindNetwork, ModelKindServing)
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s: must be a positive number", key)
	}
	return v, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return v, nil
}
