package redpanda

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/cv-screener/internal/adapter/observability"
	"github.com/fairyhunter13/cv-screener/internal/domain"
	"github.com/fairyhunter13/cv-screener/internal/usecase"
)

// screenTimeout bounds one whole batch, model calls included.
const screenTimeout = 30 * time.Minute

// HandleScreen processes one screening batch: marks it processing, runs
// the screener over every candidate, persists each result, and records
// the final status. Per-candidate failures are captured inside the
// results, so only infrastructure errors propagate (and trigger
// redelivery).
func HandleScreen(
	ctx context.Context,
	batches domain.BatchRepository,
	results domain.ResultRepository,
	progressStore domain.ProgressStore,
	screener *usecase.Screener,
	payload domain.ScreenTaskPayload,
) error {
	tracer := otel.Tracer("queue.handler")
	ctx, span := tracer.Start(ctx, "HandleScreen")
	defer span.End()

	if batches == nil {
		return fmt.Errorf("batch repository is nil")
	}
	if results == nil {
		return fmt.Errorf("result repository is nil")
	}
	if screener == nil {
		return fmt.Errorf("screener is nil")
	}

	screenCtx, cancel := context.WithTimeout(ctx, screenTimeout)
	defer cancel()

	if err := batches.UpdateStatus(screenCtx, payload.BatchID, domain.BatchProcessing, nil); err != nil {
		slog.Error("failed to mark batch processing",
			slog.String("batch_id", payload.BatchID), slog.Any("error", err))
		return fmt.Errorf("op=screen.handle: %w", err)
	}
	observability.StartProcessingBatch()

	progress := func(completed, total int, elapsed float64) {
		if progressStore == nil {
			return
		}
		snap := domain.ProgressSnapshot{Completed: completed, Total: total, ElapsedSeconds: elapsed}
		if err := progressStore.Set(screenCtx, payload.BatchID, snap); err != nil {
			slog.Warn("failed to store batch progress",
				slog.String("batch_id", payload.BatchID), slog.Any("error", err))
		}
	}

	batchResults := screener.ProcessAll(
		screenCtx, payload.JobDescription, payload.Candidates,
		payload.Concurrency, payload.EnableSummaries, progress)

	failed := 0
	for _, r := range batchResults {
		if r.Recommendation == domain.RecommendError {
			failed++
		}
		if err := results.Insert(ctx, payload.BatchID, r); err != nil {
			slog.Error("failed to store candidate result",
				slog.String("batch_id", payload.BatchID),
				slog.String("cv_file", r.CVFile),
				slog.Any("error", err))
			observability.CompleteBatch("failed")
			return fmt.Errorf("op=screen.handle: store result: %w", err)
		}
		observability.ObserveCandidate(r.Recommendation, r.FitScore)
	}

	if err := batches.UpdateCounts(ctx, payload.BatchID, len(batchResults), failed); err != nil {
		slog.Error("failed to update batch counts",
			slog.String("batch_id", payload.BatchID), slog.Any("error", err))
		observability.CompleteBatch("failed")
		return fmt.Errorf("op=screen.handle: %w", err)
	}
	if err := batches.UpdateStatus(ctx, payload.BatchID, domain.BatchCompleted, nil); err != nil {
		slog.Error("failed to mark batch completed",
			slog.String("batch_id", payload.BatchID), slog.Any("error", err))
		observability.CompleteBatch("failed")
		return fmt.Errorf("op=screen.handle: %w", err)
	}
	observability.CompleteBatch("completed")
	slog.Info("batch completed",
		slog.String("batch_id", payload.BatchID),
		slog.Int("candidates", len(batchResults)),
		slog.Int("failed", failed))
	return nil
}
