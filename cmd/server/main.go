// Command server starts the CV screening HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpserver "github.com/fairyhunter13/cv-screener/internal/adapter/httpserver"
	"github.com/fairyhunter13/cv-screener/internal/adapter/observability"
	"github.com/fairyhunter13/cv-screener/internal/adapter/progress"
	"github.com/fairyhunter13/cv-screener/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/cv-screener/internal/adapter/repo/postgres"
	tikaext "github.com/fairyhunter13/cv-screener/internal/adapter/textextractor/tika"
	"github.com/fairyhunter13/cv-screener/internal/app"
	"github.com/fairyhunter13/cv-screener/internal/config"
	"github.com/fairyhunter13/cv-screener/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, AI and batch instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	batchRepo := postgres.NewBatchRepo(pool)
	resultRepo := postgres.NewResultRepo(pool)

	qClient, err := redpanda.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		slog.Error("redpanda producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := qClient.Close(); err != nil {
			slog.Error("failed to close queue client", slog.Any("error", err))
		}
	}()

	progressStore := progress.New(cfg.RedisAddr, cfg.ProgressTTL)
	defer func() { _ = progressStore.Close() }()

	screenSvc := usecase.NewScreenService(batchRepo, qClient)

	dbCheck, redisCheck, tikaCheck := app.BuildReadinessChecks(cfg, pool, progressStore)
	ext := tikaext.New(cfg.TikaURL)

	srv := httpserver.NewServer(cfg, screenSvc, batchRepo, resultRepo, progressStore, ext, dbCheck, redisCheck, tikaCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
