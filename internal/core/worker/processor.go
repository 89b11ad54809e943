package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
	"github.com/ibrahimkeyboad/receiptbot/internal/core/notifications"
)

const (
	maxAttempts = 5
	// Status updates outlive the poll context so shutdown does not strand a claimed job
	updateTimeout = 5 * time.Second
)

// JobQueue is the outbox the worker drains
type JobQueue interface {
	Next(ctx context.Context) (*domain.WebhookJob, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID) error
	Retry(ctx context.Context, id uuid.UUID, nextRun time.Time) error
}

type SendFunc func(url string, payload []byte, secret string) error

type WebhookWorker struct {
	Queue    JobQueue
	Secret   string
	Interval time.Duration
	Send     SendFunc
	Now      func() time.Time
}

func NewWebhookWorker(queue JobQueue, secret string) *WebhookWorker {
	return &WebhookWorker{
		Queue:    queue,
		Secret:   secret,
		Interval: 5 * time.Second,
		Send:     notifications.SendWebhook,
		Now:      time.Now,
	}
}

// Start polls the queue until ctx is cancelled. The returned channel is
// closed once the job in flight, if any, has been recorded.
func (w *WebhookWorker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		slog.Info("👷 Webhook Worker started")
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			// Drain everything that is due before sleeping again
			for w.ProcessOne(ctx) {
			}
			select {
			case <-ctx.Done():
				slog.Info("Webhook Worker stopped")
				return
			case <-ticker.C:
			}
		}
	}()
	return done
}

// ProcessOne handles a single due job and reports whether one was found
func (w *WebhookWorker) ProcessOne(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	job, err := w.Queue.Next(ctx)
	if err != nil {
		slog.Error("Worker: Failed to claim job", "error", err)
		return false
	}
	if job == nil {
		return false
	}

	slog.Info("Worker: Processing job", "url", job.URL, "job_id", job.ID)

	updateCtx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	if sendErr := w.Send(job.URL, job.Payload, w.Secret); sendErr != nil {
		slog.Error("Worker: Webhook failed", "error", sendErr, "attempts", job.Attempts, "job_id", job.ID)

		if job.Attempts+1 >= maxAttempts {
			if err := w.Queue.Fail(updateCtx, job.ID); err != nil {
				slog.Error("Worker: Could not mark job as FAILED", "error", err, "job_id", job.ID)
			}
			slog.Error("Worker: Job marked as FAILED (Max attempts reached)", "job_id", job.ID)
			return true
		}

		nextRun := w.Now().Add(time.Duration(job.Attempts*10+10) * time.Second)
		if err := w.Queue.Retry(updateCtx, job.ID, nextRun); err != nil {
			slog.Error("Worker: Could not reschedule job", "error", err, "job_id", job.ID)
		} else {
			slog.Info("Worker: Scheduled retry", "next_run", nextRun, "job_id", job.ID)
		}
		return true
	}

	if err := w.Queue.Complete(updateCtx, job.ID); err != nil {
		slog.Error("Worker: Could not mark job as COMPLETED", "error", err, "job_id", job.ID)
		return true
	}
	slog.Info("✅ Worker: Webhook Sent Successfully!", "job_id", job.ID)
	return true
}
