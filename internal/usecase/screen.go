// Package usecase contains the application services: batch enqueueing
// and the parallel screening orchestrator. Services depend only on
// domain ports so transports and storage can be swapped in tests.
package usecase

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fairyhunter13/cv-screener/internal/domain"
	"github.com/fairyhunter13/cv-screener/internal/scoring"
	"github.com/fairyhunter13/cv-screener/pkg/textx"
)

// Concurrency bounds for the screening worker pool.
const (
	DefaultConcurrency = 3
	MaxConcurrency     = 6
)

// cvPreviewLen caps the stored plain-text preview per candidate.
const cvPreviewLen = 500

// ProgressFunc receives completion updates while a batch is screened.
// It is called once with (0, total, 0) before work starts and once after
// every candidate finishes, with wall-clock elapsed seconds.
type ProgressFunc func(completed, total int, elapsedSeconds float64)

// ClampConcurrency maps any requested worker count into [1, MaxConcurrency],
// defaulting when the request is zero or negative.
func ClampConcurrency(n int) int {
	if n <= 0 {
		return DefaultConcurrency
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// ScreenService creates screening batches and hands them to the queue.
type ScreenService struct {
	Batches domain.BatchRepository
	Queue   domain.Queue
}

// NewScreenService wires a ScreenService.
func NewScreenService(batches domain.BatchRepository, queue domain.Queue) ScreenService {
	return ScreenService{Batches: batches, Queue: queue}
}

// Enqueue validates the request, persists a queued batch, and publishes
// the screening task. The batch is marked failed if publishing fails, so
// a poller never waits on work that was never enqueued.
func (s ScreenService) Enqueue(ctx domain.Context, jobDescription string, candidates map[string]string, concurrency int, enableSummaries bool) (string, error) {
	if jobDescription == "" {
		return "", fmt.Errorf("op=screen.enqueue: job description is empty: %w", domain.ErrInvalidArgument)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("op=screen.enqueue: no candidates: %w", domain.ErrInvalidArgument)
	}

	id, err := s.Batches.Create(ctx, domain.Batch{
		Status:         domain.BatchQueued,
		JobDescription: jobDescription,
		Total:          len(candidates),
	})
	if err != nil {
		return "", fmt.Errorf("op=screen.enqueue: %w", err)
	}

	payload := domain.ScreenTaskPayload{
		BatchID:         id,
		JobDescription:  jobDescription,
		Candidates:      candidates,
		Concurrency:     ClampConcurrency(concurrency),
		EnableSummaries: enableSummaries,
	}
	if _, err := s.Queue.EnqueueScreen(ctx, payload); err != nil {
		msg := err.Error()
		if uerr := s.Batches.UpdateStatus(ctx, id, domain.BatchFailed, &msg); uerr != nil {
			slog.Error("failed to mark batch failed after enqueue error",
				slog.String("batch_id", id), slog.Any("error", uerr))
		}
		return "", fmt.Errorf("op=screen.enqueue: %w", err)
	}
	return id, nil
}

// Screener runs the extraction and scoring pipeline over a batch of
// candidates with a bounded worker pool.
type Screener struct {
	Extractor domain.ProfileExtractor
	Scorer    *scoring.Scorer
}

// NewScreener wires a Screener.
func NewScreener(extractor domain.ProfileExtractor, scorer *scoring.Scorer) *Screener {
	return &Screener{Extractor: extractor, Scorer: scorer}
}

// ProcessAll screens every candidate and returns one result per input in
// completion order. A candidate whose model call fails yields an ERROR
// result instead of aborting the batch; summary failures degrade to an
// empty summary. The progress callback sees a monotonically increasing
// completed count.
func (s *Screener) ProcessAll(ctx domain.Context, jobDescription string, candidates map[string]string, concurrency int, enableSummaries bool, progress ProgressFunc) []domain.CandidateResult {
	if progress == nil {
		progress = func(int, int, float64) {}
	}
	total := len(candidates)
	start := time.Now()
	progress(0, total, 0)
	if total == 0 {
		return []domain.CandidateResult{}
	}

	names := make([]string, 0, total)
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	workers := ClampConcurrency(concurrency)
	if workers > total {
		workers = total
	}

	jobs := make(chan string)
	out := make(chan domain.CandidateResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				out <- s.screenOne(ctx, jobDescription, name, candidates[name], enableSummaries)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, name := range names {
			jobs <- name
		}
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]domain.CandidateResult, 0, total)
	completed := 0
	for res := range out {
		results = append(results, res)
		completed++
		progress(completed, total, time.Since(start).Seconds())
	}
	return results
}

func (s *Screener) screenOne(ctx domain.Context, jobDescription, name, cvText string, enableSummaries bool) domain.CandidateResult {
	preview := textx.Preview(cvText, cvPreviewLen)

	profile, err := s.Extractor.ExtractProfile(ctx, jobDescription, name, cvText)
	if err != nil {
		slog.Error("candidate screening failed",
			slog.String("candidate", name), slog.Any("error", err))
		return domain.CandidateResult{
			CVFile:         name,
			FitScore:       0,
			Recommendation: domain.RecommendError,
			Summary:        fmt.Sprintf("Error: %v", err),
			Breakdown:      []string{},
			ExtractedData:  domain.EmptyProfile(domain.IssueError, err.Error()),
			Details:        map[string][]string{},
			CVTextPreview:  preview,
		}
	}

	score := s.Scorer.Score(profile)
	res := domain.CandidateResult{
		CVFile:         name,
		FitScore:       score.FinalScore,
		Recommendation: score.Recommendation,
		Breakdown:      score.Breakdown,
		ExtractedData:  profile,
		Details:        score.Details,
		CVTextPreview:  preview,
	}
	if enableSummaries {
		summary, err := s.Extractor.Summarize(ctx, jobDescription, name, score.FinalScore, score.Recommendation, score.Breakdown)
		if err != nil {
			slog.Warn("summary generation failed, using fallback",
				slog.String("candidate", name), slog.Any("error", err))
			res.Summary = fallbackSummary(score)
		} else {
			res.Summary = summary
		}
	}
	return res
}

// fallbackSummary derives a one-line summary from the score when the
// summary model call fails.
func fallbackSummary(score domain.ScoreResult) string {
	return fmt.Sprintf("%s: fit score %d/100.", score.Recommendation, score.FinalScore)
}
