package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the TaskQueue
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// TaskQueue is the in-memory Queue: a buffered channel. Jobs do not survive a
// restart.
type TaskQueue struct {
	jobs   chan Job
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewTaskQueue creates a new task queue with the specified buffer size
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	if size <= 0 {
		size = 1
	}
	return &TaskQueue{
		jobs:   make(chan Job, size),
		logger: logger,
	}
}

// Enqueue adds a job to the queue for processing.
// Returns an error if the queue is full or closed.
func (q *TaskQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		q.logger.DebugContext(ctx, "job enqueued",
			"task_id", job.TaskID,
			"task_kind", job.Kind,
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Jobs returns a read-only channel for consuming jobs.
func (q *TaskQueue) Jobs() <-chan Job {
	return q.jobs
}

// Close closes the task queue, preventing further submission. Jobs already
// buffered can still be drained.
func (q *TaskQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Info("task queue closed")
	}
	return nil
}
