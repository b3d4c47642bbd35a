// Command ingest copies a file dataset into PostgreSQL, replacing the
// stations, climatology and counties tables in one transaction.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./cmd/ingest -data-dir data -migrate
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/couchcryptid/firewhere/internal/adapter/file"
	"github.com/couchcryptid/firewhere/internal/adapter/postgres"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	dataDir := flag.String("data-dir", sharedcfg.EnvOrDefault("DATA_DIR", "./data"), "dataset directory to ingest")
	migrate := flag.Bool("migrate", false, "create the schema before ingesting")
	migration := flag.String("migration", filepath.Join("migrations", "001_create_dataset.up.sql"), "schema script run with -migrate")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall time limit")
	flag.Parse()

	logger := sharedobs.NewLogger(
		sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, logger, os.Getenv("DATABASE_URL"), *dataDir, *migrate, *migration); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, url, dataDir string, migrate bool, migration string) error {
	if url == "" {
		return errors.New("DATABASE_URL is required")
	}

	stations, err := file.LoadStations(filepath.Join(dataDir, file.StationsFile))
	if err != nil {
		return err
	}
	climatology, dropped, err := file.LoadClimatology(dataDir)
	if err != nil {
		return err
	}
	if len(dropped) > 0 {
		logger.Warn("incomplete climatology days skipped", "count", len(dropped),
			"first_station", dropped[0].StationID, "first_day", dropped[0].DayOfYear)
	}
	directory, err := file.NewSource(dataDir, logger).LoadDirectory(ctx)
	if err != nil {
		return err
	}
	logger.Info("dataset read", "dir", dataDir, "stations", len(stations), "climatology", len(climatology))

	store, err := postgres.Open(ctx, url)
	if err != nil {
		return err
	}
	defer store.Close()

	if migrate {
		if err := store.Migrate(ctx, migration); err != nil {
			return err
		}
		logger.Info("schema migrated", "script", migration)
	}

	start := time.Now()
	res, err := store.Replace(ctx, postgres.Dataset{
		Stations:    stations,
		Climatology: climatology,
		Directory:   directory,
	})
	if err != nil {
		return err
	}
	logger.Info("dataset ingested",
		"stations", res.Stations,
		"climatology", res.Climatology,
		"counties", res.Counties,
		"duration", time.Since(start),
	)
	return nil
}
