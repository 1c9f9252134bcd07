package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/store"
)

// Failure messages written by recovery and the stuck-task monitor.
const (
	MessageInterrupted = "task interrupted before completion"
	MessageLost        = "task lost before processing"
	MessageTimedOut    = "task processing timed out"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and failed
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration

	// FailPendingOnRecover fails Pending records found at startup. Set it
	// when the queue does not survive restarts, since their jobs are gone.
	FailPendingOnRecover bool
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            4,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		FailPendingOnRecover:   true,
	}
}

// TaskRunner manages background task processing: startup recovery, the
// worker pool and the stuck-task monitor.
type TaskRunner struct {
	store      store.TaskStore
	pool       *WorkerPool
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
}

// NewTaskRunner creates a new TaskRunner consuming jobs from queue.
func NewTaskRunner(
	s store.TaskStore,
	queue Queue,
	handler JobHandler,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	if config.StuckTaskCheckInterval <= 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}

	logger = logger.With("component", "task_runner")
	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		store: s,
		pool: NewWorkerPool(queue.Jobs(), handler, WorkerPoolConfig{
			WorkerCount: config.WorkerCount,
		}, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
	}
}

// Start recovers unfinished records, then starts the workers and the
// stuck-task monitor.
func (r *TaskRunner) Start() error {
	if err := r.Recover(r.ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	r.pool.Start()

	if r.config.StuckTaskAge > 0 {
		r.wg.Add(1)
		go r.stuckTaskMonitor()
	}

	return nil
}

// Stop gracefully shuts down the task runner
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.pool.Stop()
	r.wg.Wait()
}

// Recover fails records a previous process left unfinished. Processing
// records lost their worker; Pending records lost their job when
// FailPendingOnRecover is set.
func (r *TaskRunner) Recover(ctx context.Context) error {
	processing, err := r.store.ListByStatus(ctx, domain.TaskStatusProcessing, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	var pending []*domain.TaskRecord
	if r.config.FailPendingOnRecover {
		pending, err = r.store.ListByStatus(ctx, domain.TaskStatusPending, 0)
		if err != nil {
			return fmt.Errorf("failed to get pending tasks: %w", err)
		}
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"processing_count", len(processing))

	r.failAll(ctx, processing, MessageInterrupted)
	r.failAll(ctx, pending, MessageLost)

	return nil
}

// FailStuckTasks fails Processing records not updated for StuckTaskAge and
// returns how many were failed.
func (r *TaskRunner) FailStuckTasks(ctx context.Context) (int, error) {
	stuck, err := r.store.ListByStatus(ctx, domain.TaskStatusProcessing, r.config.StuckTaskAge)
	if err != nil {
		return 0, fmt.Errorf("failed to list stuck tasks: %w", err)
	}
	if len(stuck) > 0 {
		r.logger.Info("found stuck tasks", "count", len(stuck))
	}
	return r.failAll(ctx, stuck, MessageTimedOut), nil
}

func (r *TaskRunner) failAll(ctx context.Context, records []*domain.TaskRecord, msg string) int {
	failed := 0
	for _, rec := range records {
		if err := r.store.Fail(ctx, rec.ID, msg); err != nil {
			r.logger.Error("failed to fail task",
				"task_id", rec.ID,
				"task_kind", rec.Kind,
				"reason", msg,
				"error", err)
			continue
		}
		r.logger.Warn("task failed by supervisor",
			"task_id", rec.ID,
			"task_kind", rec.Kind,
			"reason", msg)
		failed++
	}
	return failed
}

// stuckTaskMonitor periodically fails tasks that have been in "processing"
// state for too long
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			if _, err := r.FailStuckTasks(r.ctx); err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
			}
		}
	}
}
