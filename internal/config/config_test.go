package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMapboxToken = "pk.test-token"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, DataSourceFile, cfg.DataSource)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 1.0, cfg.CoverageThreshold)

	assert.Equal(t, ModelKindNetwork, cfg.ModelKind)
	assert.Equal(t, "./data/model.json", cfg.ModelPath)
	assert.Equal(t, 10*time.Second, cfg.ModelTimeout)
	assert.Equal(t, "firewhere", cfg.ServingModel)
	assert.Equal(t, 5.0, cfg.ServingRPS)
	assert.Equal(t, 10, cfg.ServingBurst)

	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "fire-size-predictions", cfg.KafkaTopic)

	assert.False(t, cfg.MapboxEnabled)
	assert.Empty(t, cfg.MapboxToken)
	assert.Equal(t, 5*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 1000, cfg.MapboxCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("DATA_SOURCE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://fw:fw@localhost:5432/firewhere?sslmode=disable")
	t.Setenv("COVERAGE_THRESHOLD", "0.5")
	t.Setenv("MODEL_KIND", "serving")
	t.Setenv("SERVING_URL", "http://tfserving:8501")
	t.Setenv("SERVING_MODEL", "fw_model")
	t.Setenv("SERVING_RPS", "2.5")
	t.Setenv("SERVING_BURST", "4")
	t.Setenv("MODEL_TIMEOUT", "3s")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-predictions")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_TIMEOUT", "10s")
	t.Setenv("MAPBOX_CACHE_SIZE", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, DataSourcePostgres, cfg.DataSource)
	assert.Equal(t, "postgres://fw:fw@localhost:5432/firewhere?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, 0.5, cfg.CoverageThreshold)
	assert.Equal(t, ModelKindServing, cfg.ModelKind)
	assert.Equal(t, "http://tfserving:8501", cfg.ServingURL)
	assert.Equal(t, "fw_model", cfg.ServingModel)
	assert.Equal(t, 2.5, cfg.ServingRPS)
	assert.Equal(t, 4, cfg.ServingBurst)
	assert.Equal(t, 3*time.Second, cfg.ModelTimeout)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-predictions", cfg.KafkaTopic)
	assert.True(t, cfg.MapboxEnabled)
	assert.Equal(t, testMapboxToken, cfg.MapboxToken)
	assert.Equal(t, 10*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 500, cfg.MapboxCacheSize)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidDataSource(t *testing.T) {
	t.Setenv("DATA_SOURCE", "s3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATA_SOURCE")
}

func TestLoad_PostgresWithoutURL(t *testing.T) {
	t.Setenv("DATA_SOURCE", "postgres")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_InvalidCoverageThreshold(t *testing.T) {
	for _, v := range []string{"0", "-1", "abc", "NaN", "Inf", "+Inf", "-Inf"} {
		t.Setenv("COVERAGE_THRESHOLD", v)
		_, err := Load()
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "COVERAGE_THRESHOLD")
	}
}

func TestLoad_InvalidModelKind(t *testing.T) {
	t.Setenv("MODEL_KIND", "onnx")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODEL_KIND")
}

func TestLoad_ServingWithoutURL(t *testing.T) {
	t.Setenv("MODEL_KIND", "serving")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVING_URL")
}

func TestLoad_InvalidModelTimeout(t *testing.T) {
	t.Setenv("MODEL_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODEL_TIMEOUT")
}

func TestLoad_InvalidServingBurst(t *testing.T) {
	t.Setenv("SERVING_BURST", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVING_BURST")
}

func TestLoad_NonFiniteServingRPS(t *testing.T) {
	for _, v := range []string{"NaN", "Inf"} {
		t.Setenv("SERVING_RPS", v)
		_, err := Load()
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "SERVING_RPS")
	}
}

func TestLoad_MapboxCacheSize(t *testing.T) {
	t.Setenv("MAPBOX_CACHE_SIZE", "250")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.MapboxCacheSize)
}

func TestLoad_InvalidMapboxCacheSize(t *testing.T) {
	for _, v := range []string{"0", "-5", "lots"} {
		t.Setenv("MAPBOX_CACHE_SIZE", v)
		_, err := Load()
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "MAPBOX_CACHE_SIZE")
	}
}

func TestLoad_InvalidMapboxTimeout(t *testing.T) {
	t.Setenv("MAPBOX_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TIMEOUT")
}

func TestLoad_MapboxEnabledWithoutToken(t *testing.T) {
	t.Setenv("MAPBOX_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TOKEN")
}

func TestLoad_MapboxTokenImpliesEnabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.MapboxEnabled)
}

func TestLoad_MapboxExplicitlyDisabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}
