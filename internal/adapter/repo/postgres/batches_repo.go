package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

// BatchRepo persists and loads screening batches using a minimal pgx pool.
type BatchRepo struct{ Pool PgxPool }

// NewBatchRepo constructs a BatchRepo with the given pool.
func NewBatchRepo(p PgxPool) *BatchRepo { return &BatchRepo{Pool: p} }

// Create inserts a new batch and returns its id (generates one if empty).
func (r *BatchRepo) Create(ctx domain.Context, b domain.Batch) (string, error) {
	tracer := otel.Tracer("repo.batches")
	ctx, span := tracer.Start(ctx, "batches.Create")
	defer span.End()
	id := b.ID
	if id == "" {
		id = uuid.New().String()
	}
	q := `INSERT INTO batches (id, status, job_description, total, completed, failed, error, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	now := time.Now().UTC()
	_, err := r.Pool.Exec(ctx, q, id, b.Status, b.JobDescription, b.Total, b.Completed, b.Failed, b.Error, now, now)
	if err != nil {
		return "", fmt.Errorf("op=batch.create: %w", err)
	}
	return id, nil
}

// Get loads a batch by id.
func (r *BatchRepo) Get(ctx domain.Context, id string) (domain.Batch, error) {
	tracer := otel.Tracer("repo.batches")
	ctx, span := tracer.Start(ctx, "batches.Get")
	defer span.End()
	q := `SELECT id, status, job_description, total, completed, failed, COALESCE(error,''), created_at, updated_at FROM batches WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var b domain.Batch
	if err := row.Scan(&b.ID, &b.Status, &b.JobDescription, &b.Total, &b.Completed, &b.Failed, &b.Error, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Batch{}, fmt.Errorf("op=batch.get: %w", domain.ErrNotFound)
		}
		return domain.Batch{}, fmt.Errorf("op=batch.get: %w", err)
	}
	return b, nil
}

// UpdateStatus updates a batch's status and optional error message.
func (r *BatchRepo) UpdateStatus(ctx domain.Context, id string, status domain.BatchStatus, errMsg *string) error {
	tracer := otel.Tracer("repo.batches")
	ctx, span := tracer.Start(ctx, "batches.UpdateStatus")
	defer span.End()
	q := `UPDATE batches SET status=$2, error=$3, updated_at=$4 WHERE id=$1`
	// Map nil errMsg to empty string to satisfy NOT NULL constraint on error column
	errVal := ""
	if errMsg != nil {
		errVal = *errMsg
	}
	_, err := r.Pool.Exec(ctx, q, id, status, errVal, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=batch.update_status: %w", err)
	}
	return nil
}

// UpdateCounts records how many candidates finished and how many of those
// degraded to ERROR results.
func (r *BatchRepo) UpdateCounts(ctx domain.Context, id string, completed, failed int) error {
	tracer := otel.Tracer("repo.batches")
	ctx, span := tracer.Start(ctx, "batches.UpdateCounts")
	defer span.End()
	q := `UPDATE batches SET completed=$2, failed=$3, updated_at=$4 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, id, completed, failed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=batch.update_counts: %w", err)
	}
	return nil
}
