// Command export runs one maxima export pass: it decodes the configured
// result store, flattens the maxima selected by EXPORT_FILTER into
// records, and publishes them to the sink Kafka topic.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/hydro-results/internal/adapter/csvstore"
	"github.com/couchcryptid/hydro-results/internal/adapter/gpkgstore"
	kafkaadapter "github.com/couchcryptid/hydro-results/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-results/internal/config"
	"github.com/couchcryptid/hydro-results/internal/domain"
	"github.com/couchcryptid/hydro-results/internal/export"
	"github.com/couchcryptid/hydro-results/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := domain.NewResultStore(newLoader(cfg, logger), logger)
	if err := store.Load(ctx); err != nil {
		logger.Error("result store load failed", "error", err, "path", cfg.StorePath)
		os.Exit(1)
	}

	writer := kafkaadapter.NewWriter(cfg, logger)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}()

	runner := export.New(store, writer, logger, metrics, cfg.ExportBatchSize)
	published, err := runner.Run(ctx, cfg.ExportFilter)
	if err != nil {
		logger.Error("export failed", "error", err, "published", published)
		os.Exit(1)
	}
}

func newLoader(cfg *config.Config, logger *slog.Logger) domain.Loader {
	if cfg.StoreFormat == "gpkg" {
		return gpkgstore.New(cfg.StorePath, logger)
	}
	return csvstore.New(cfg.StorePath, logger)
}
