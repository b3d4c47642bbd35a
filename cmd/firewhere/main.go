package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/firewhere/internal/adapter/file"
	httpadapter "github.com/couchcryptid/firewhere/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/firewhere/internal/adapter/kafka"
	"github.com/couchcryptid/firewhere/internal/adapter/mapbox"
	"github.com/couchcryptid/firewhere/internal/adapter/model"
	"github.com/couchcryptid/firewhere/internal/adapter/postgres"
	"github.com/couchcryptid/firewhere/internal/config"
	"github.com/couchcryptid/firewhere/internal/domain"
	"github.com/couchcryptid/firewhere/internal/observability"
	"github.com/couchcryptid/firewhere/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	source, closeSource, err := newCatalogSource(cfg, logger)
	if err != nil {
		logger.Error("failed to open catalog source", "error", err)
		os.Exit(1)
	}
	logger.Info("catalog source configured", "source", cfg.DataSource)

	opts := pipeline.Options{Threshold: cfg.CoverageThreshold}

	// Geocoding fallback for counties missing from the directory (MAPBOX_ENABLED / MAPBOX_TOKEN).
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		opts.Geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		opts.Recorder = publisher
		logger.Info("prediction events enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(source, newPredictorLoader(cfg, logger), logger, metrics, opts)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server. Prediction routes answer 503 until the snapshot loads.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Load catalog, directory and model.
	go func() {
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("snapshot load error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := closeSource.Close(); err != nil {
		logger.Error("catalog source close error", "error", err)
	}

	logger.Info("shutdown complete")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newCatalogSource picks the file or Postgres backend per DATA_SOURCE.
func newCatalogSource(cfg *config.Config, logger *slog.Logger) (pipeline.CatalogSource, io.Closer, error) {
	if cfg.DataSource == config.DataSourcePostgres {
		store, err := postgres.Dial(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	return file.NewSource(cfg.DataDir, logger), nopCloser{}, nil
}

// newPredictorLoader loads a local network artifact or connects to a TF
// Serving endpoint per MODEL_KIND.
func newPredictorLoader(cfg *config.Config, logger *slog.Logger) pipeline.PredictorLoader {
	if cfg.ModelKind == config.ModelKindServing {
		return func(_ context.Context) (domain.Predictor, error) {
			client := model.NewServingClient(cfg.ServingURL, cfg.ServingModel, cfg.ModelTimeout)
			logger.Info("using model server", "url", cfg.ServingURL, "model", cfg.ServingModel, "rps", cfg.ServingRPS)
			return model.NewRateLimitedPredictor(client, cfg.ServingRPS, cfg.ServingBurst), nil
		}
	}
	return func(ctx context.Context) (domain.Predictor, error) {
		network, err := model.Load(ctx, cfg.ModelPath, &http.Client{Timeout: cfg.ModelTimeout})
		if err != nil {
			return nil, err
		}
		logger.Info("model loaded", "path", cfg.ModelPath, "kind", network.Kind())
		return network, nil
	}
}
