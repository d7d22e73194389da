// Command queryd serves the result store query API. It decodes one
// model result store at startup and answers time-series, maxima, and
// long-profile queries over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/hydro-results/internal/adapter/csvstore"
	"github.com/couchcryptid/hydro-results/internal/adapter/gpkgstore"
	httpadapter "github.com/couchcryptid/hydro-results/internal/adapter/http"
	"github.com/couchcryptid/hydro-results/internal/config"
	"github.com/couchcryptid/hydro-results/internal/domain"
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

	store := domain.NewResultStore(newLoader(cfg, logger), logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, store, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Decode the store up front so the first query does not pay for it.
	// The server starts serving /healthz while this runs; /readyz flips
	// once the load finishes.
	go func() {
		start := time.Now()
		if err := store.Load(ctx); err != nil {
			logger.Error("result store load failed", "error", err, "path", cfg.StorePath)
			return
		}
		metrics.StoreLoaded.Set(1)
		metrics.StoreLoadDuration.Observe(time.Since(start).Seconds())
	}()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func newLoader(cfg *config.Config, logger *slog.Logger) domain.Loader {
	if cfg.StoreFormat == "gpkg" {
		return gpkgstore.New(cfg.StorePath, logger)
	}
	return csvstore.New(cfg.StorePath, logger)
}
