package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
)

type fakeQueue struct {
	mu        sync.Mutex
	updateErr []error // ctx.Err() seen by each status update
	pending   []*domain.WebhookJob
	completed []uuid.UUID
	failed    []uuid.UUID
	retried   map[uuid.UUID]time.Time
}

func newFakeQueue(jobs ...*domain.WebhookJob) *fakeQueue {
	return &fakeQueue{pending: jobs, retried: map[uuid.UUID]time.Time{}}
}

func (q *fakeQueue) Next(context.Context) (*domain.WebhookJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return job, nil
}

func (q *fakeQueue) Complete(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updateErr = append(q.updateErr, ctx.Err())
	q.completed = append(q.completed, id)
	return nil
}

func (q *fakeQueue) Fail(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updateErr = append(q.updateErr, ctx.Err())
	q.failed = append(q.failed, id)
	return nil
}

func (q *fakeQueue) Retry(ctx context.Context, id uuid.UUID, next time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updateErr = append(q.updateErr, ctx.Err())
	q.retried[id] = next
	return nil
}

func (q *fakeQueue) completedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.completed)
}

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestWorker(q JobQueue, send SendFunc) *WebhookWorker {
	w := NewWebhookWorker(q, "secret")
	w.Send = send
	w.Now = func() time.Time { return fixedNow }
	w.Interval = 10 * time.Millisecond
	return w
}

func TestProcessOneSuccess(t *testing.T) {
	job := &domain.WebhookJob{ID: uuid.New(), URL: "https://example.com", Payload: []byte(`{}`)}
	q := newFakeQueue(job)

	var gotSecret string
	w := newTestWorker(q, func(url string, payload []byte, secret string) error {
		gotSecret = secret
		return nil
	})

	require.True(t, w.ProcessOne(context.Background()))
	require.Equal(t, []uuid.UUID{job.ID}, q.completed)
	require.Equal(t, "secret", gotSecret)

	require.False(t, w.ProcessOne(context.Background()), "queue is empty")
}

func TestProcessOneRetriesWithBackoff(t *testing.T) {
	job := &domain.WebhookJob{ID: uuid.New(), URL: "https://example.com", Attempts: 2}
	q := newFakeQueue(job)
	w := newTestWorker(q, func(string, []byte, string) error { return errors.New("boom") })

	require.True(t, w.ProcessOne(context.Background()))
	require.Equal(t, fixedNow.Add(30*time.Second), q.retried[job.ID])
	require.Empty(t, q.failed)
}

func TestProcessOneGivesUp(t *testing.T) {
	job := &domain.WebhookJob{ID: uuid.New(), URL: "https://example.com", Attempts: maxAttempts - 1}
	q := newFakeQueue(job)
	w := newTestWorker(q, func(string, []byte, string) error { return errors.New("boom") })

	require.True(t, w.ProcessOne(context.Background()))
	require.Equal(t, []uuid.UUID{job.ID}, q.failed)
	require.Empty(t, q.retried)
}

func TestStartDrainsQueue(t *testing.T) {
	q := newFakeQueue(
		&domain.WebhookJob{ID: uuid.New()},
		&domain.WebhookJob{ID: uuid.New()},
	)
	w := newTestWorker(q, func(string, []byte, string) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := w.Start(ctx)

	require.Eventually(t, func() bool { return q.completedCount() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestShutdownDuringSendStillRecordsJob(t *testing.T) {
	job := &domain.WebhookJob{ID: uuid.New(), URL: "https://example.com"}
	q := newFakeQueue(job)

	ctx, cancel := context.WithCancel(context.Background())
	w := newTestWorker(q, func(string, []byte, string) error {
		cancel() // SIGTERM arrives while the webhook is in flight
		return nil
	})

	require.True(t, w.ProcessOne(ctx))
	require.Equal(t, []uuid.UUID{job.ID}, q.completed)
	require.Equal(t, []error{nil}, q.updateErr, "status update runs on a live context")
}

func TestShutdownDuringFailedSendReschedules(t *testing.T) {
	job := &domain.WebhookJob{ID: uuid.New(), URL: "https://example.com"}
	q := newFakeQueue(job)

	ctx, cancel := context.WithCancel(context.Background())
	w := newTestWorker(q, func(string, []byte, string) error {
		cancel()
		return errors.New("connection reset")
	})

	require.True(t, w.ProcessOne(ctx))
	require.Contains(t, q.retried, job.ID)
	require.Equal(t, []error{nil}, q.updateErr)
}
