package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
)

// A RUNNING job whose lease has run out belongs to a worker that died or was
// killed mid-send and is handed out again
const jobLease = 5 * time.Minute

// JobRepository is the webhook outbox
type JobRepository struct {
	db *pgxpool.Pool
}

func NewJobRepository(db *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Enqueue(ctx context.Context, url string, payload []byte) error {
	_, err := r.db.Exec(ctx, `INSERT INTO webhook_jobs (url, payload) VALUES ($1, $2)`, url, payload)
	if err != nil {
		return fmt.Errorf("failed to queue webhook: %w", err)
	}
	return nil
}

// Next claims the oldest due job, including RUNNING jobs whose lease expired.
// It returns (nil, nil) when the queue is empty.
func (r *JobRepository) Next(ctx context.Context) (*domain.WebhookJob, error) {
	query := `
		UPDATE webhook_jobs SET
			status = 'RUNNING',
			attempts = attempts + CASE WHEN status = 'RUNNING' THEN 1 ELSE 0 END,
			next_run_at = NOW() + $1::interval
		WHERE id = (
			SELECT id FROM webhook_jobs
			WHERE status IN ('PENDING', 'RUNNING') AND next_run_at <= NOW()
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, url, payload, attempts
	`
	var job domain.WebhookJob
	err := r.db.QueryRow(ctx, query, jobLease).Scan(&job.ID, &job.URL, &job.Payload, &job.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim webhook job: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) Complete(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, "COMPLETED")
}

func (r *JobRepository) Fail(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, "FAILED")
}

// Retry puts the job back in the queue for nextRun
func (r *JobRepository) Retry(ctx context.Context, id uuid.UUID, nextRun time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE webhook_jobs SET status = 'PENDING', attempts = attempts + 1, next_run_at = $2 WHERE id = $1`,
		id, nextRun)
	if err != nil {
		return fmt.Errorf("failed to reschedule webhook job: %w", err)
	}
	return nil
}

func (r *JobRepository) setStatus(ctx context.Context, id uuid.UUID, status string) error {
	if _, err := r.db.Exec(ctx, `UPDATE webhook_jobs SET status = $2 WHERE id = $1`, id, status); err != nil {
		return fmt.Errorf("failed to mark webhook job %s: %w", status, err)
	}
	return nil
}
