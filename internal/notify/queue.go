// Package notify delivers fan and operator notifications out of band.
//
// Reconciliation hands a domain.Notification to a Queue through
// QueueNotifier and returns immediately. A Worker pool drains the queue,
// resolves the recipient and sends through Telegram and email. Delivery is
// best effort: failed jobs are retried a bounded number of times and then
// dropped with an error log.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/fanclub-backend/internal/domain"
)

// ErrEmpty is returned by Queue.Pop when no job arrived within the wait.
var ErrEmpty = errors.New("queue empty")

// Job is one queued notification.
type Job struct {
	ID           string              `json:"id"`
	Notification domain.Notification `json:"notification"`
	Attempts     int                 `json:"attempts"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
}

// Queue is a FIFO of jobs shared between producers and workers.
type Queue interface {
	Push(ctx context.Context, job Job) error
	// Pop blocks up to wait for a job and returns ErrEmpty on timeout.
	Pop(ctx context.Context, wait time.Duration) (*Job, error)
}

func encodeJob(job Job) ([]byte, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return b, nil
}

func decodeJob(raw []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// QueueNotifier enqueues notifications. It satisfies services.Notifier.
type QueueNotifier struct {
	Queue Queue
	// now is swapped in tests.
	now func() time.Time
}

// NewQueueNotifier wraps q.
func NewQueueNotifier(q Queue) *QueueNotifier {
	return &QueueNotifier{Queue: q, now: time.Now}
}

// Notify queues n for delivery.
func (q *QueueNotifier) Notify(ctx context.Context, n domain.Notification) error {
	now := time.Now
	if q.now != nil {
		now = q.now
	}
	return q.Queue.Push(ctx, Job{
		ID:           uuid.NewString(),
		Notification: n,
		EnqueuedAt:   now().UTC(),
	})
}

// MemoryQueue is an in-process queue used when no Redis is configured.
// Jobs are lost on restart.
type MemoryQueue struct {
	ch chan Job
}

// NewMemoryQueue returns a queue holding up to size jobs.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{ch: make(chan Job, size)}
}

// Push enqueues job or fails when the buffer is full.
func (m *MemoryQueue) Push(ctx context.Context, job Job) error {
	select {
	case m.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("memory queue full")
	}
}

// Pop waits up to wait for a job.
func (m *MemoryQueue) Pop(ctx context.Context, wait time.Duration) (*Job, error) {
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case job := <-m.ch:
		return &job, nil
	case <-t.C:
		return nil, ErrEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of queued jobs.
func (m *MemoryQueue) Len() int { return len(m.ch) }
