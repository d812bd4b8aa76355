// Command worker consumes screening batches from the Redpanda queue and
// runs the extraction and scoring pipeline over them.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/cv-screener/internal/adapter/ai"
	"github.com/fairyhunter13/cv-screener/internal/adapter/ai/openrouter"
	"github.com/fairyhunter13/cv-screener/internal/adapter/ai/stub"
	"github.com/fairyhunter13/cv-screener/internal/adapter/observability"
	"github.com/fairyhunter13/cv-screener/internal/adapter/progress"
	"github.com/fairyhunter13/cv-screener/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/cv-screener/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/cv-screener/internal/config"
	"github.com/fairyhunter13/cv-screener/internal/domain"
	"github.com/fairyhunter13/cv-screener/internal/scoring"
	"github.com/fairyhunter13/cv-screener/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Expose worker metrics on a dedicated endpoint for scraping.
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	batchRepo := postgres.NewBatchRepo(pool)
	resultRepo := postgres.NewResultRepo(pool)

	progressStore := progress.New(cfg.RedisAddr, cfg.ProgressTTL)
	defer func() { _ = progressStore.Close() }()

	var aiClient domain.AIClient
	if cfg.OpenRouterAPIKey != "" {
		aiClient = openrouter.New(cfg)
	} else {
		slog.Warn("OPENROUTER_API_KEY not set, using deterministic stub client")
		aiClient = stub.New()
	}
	extractor := ai.NewExtractor(aiClient, ai.NewDebugDumper(cfg.DebugResponseDir), cfg.AIMaxTokens, cfg.AISerializeCalls)

	rules, err := config.LoadScoringRules(cfg.ScoringRulesPath)
	if err != nil {
		slog.Error("scoring rules load failed", slog.Any("error", err))
		os.Exit(1)
	}
	screener := usecase.NewScreener(extractor, scoring.New(rules))

	worker, err := redpanda.NewConsumer(cfg.KafkaBrokers, "cv-screener-workers",
		func(ctx context.Context, payload domain.ScreenTaskPayload) error {
			return redpanda.HandleScreen(ctx, batchRepo, resultRepo, progressStore, screener, payload)
		})
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := worker.Close(); err != nil {
			slog.Error("failed to close worker", slog.Any("error", err))
		}
	}()

	go func() {
		if err := worker.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("worker error", slog.Any("error", err))
		}
	}()

	slog.Info("worker started, waiting for shutdown signal")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))
}
