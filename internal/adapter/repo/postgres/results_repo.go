package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

// ResultRepo persists per-candidate screening results.
type ResultRepo struct{ Pool PgxPool }

// NewResultRepo constructs a ResultRepo with the given pool.
func NewResultRepo(p PgxPool) *ResultRepo { return &ResultRepo{Pool: p} }

// Insert stores one candidate result. Breakdown, extracted profile and
// details are stored as JSONB; rows keep their insertion (completion)
// order via the serial primary key.
func (r *ResultRepo) Insert(ctx domain.Context, batchID string, res domain.CandidateResult) error {
	tracer := otel.Tracer("repo.results")
	ctx, span := tracer.Start(ctx, "results.Insert")
	defer span.End()

	breakdown, err := json.Marshal(res.Breakdown)
	if err != nil {
		return fmt.Errorf("op=result.insert: %w", err)
	}
	extracted, err := json.Marshal(res.ExtractedData)
	if err != nil {
		return fmt.Errorf("op=result.insert: %w", err)
	}
	details, err := json.Marshal(res.Details)
	if err != nil {
		return fmt.Errorf("op=result.insert: %w", err)
	}

	q := `INSERT INTO candidate_results (batch_id, cv_file, fit_score, recommendation, summary, breakdown, extracted_data, details, cv_text_preview, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = r.Pool.Exec(ctx, q, batchID, res.CVFile, res.FitScore, res.Recommendation, res.Summary, breakdown, extracted, details, res.CVTextPreview, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=result.insert: %w", err)
	}
	return nil
}

// ListByBatch loads all results for a batch in completion order.
func (r *ResultRepo) ListByBatch(ctx domain.Context, batchID string) ([]domain.CandidateResult, error) {
	tracer := otel.Tracer("repo.results")
	ctx, span := tracer.Start(ctx, "results.ListByBatch")
	defer span.End()

	q := `SELECT cv_file, fit_score, recommendation, summary, breakdown, extracted_data, details, cv_text_preview FROM candidate_results WHERE batch_id=$1 ORDER BY id`
	rows, err := r.Pool.Query(ctx, q, batchID)
	if err != nil {
		return nil, fmt.Errorf("op=result.list: %w", err)
	}
	defer rows.Close()

	var out []domain.CandidateResult
	for rows.Next() {
		var res domain.CandidateResult
		var breakdown, extracted, details []byte
		if err := rows.Scan(&res.CVFile, &res.FitScore, &res.Recommendation, &res.Summary, &breakdown, &extracted, &details, &res.CVTextPreview); err != nil {
			return nil, fmt.Errorf("op=result.list: %w", err)
		}
		if err := json.Unmarshal(breakdown, &res.Breakdown); err != nil {
			return nil, fmt.Errorf("op=result.list: %w", err)
		}
		if err := json.Unmarshal(extracted, &res.ExtractedData); err != nil {
			return nil, fmt.Errorf("op=result.list: %w", err)
		}
		if err := json.Unmarshal(details, &res.Details); err != nil {
			return nil, fmt.Errorf("op=result.list: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=result.list: %w", err)
	}
	return out, nil
}
