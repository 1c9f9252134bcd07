package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/events"
	"github.com/IuryyCosta/test-servimed/internal/platform/logger"
	"github.com/IuryyCosta/test-servimed/internal/redact"
	"github.com/IuryyCosta/test-servimed/internal/store"
)

// ErrJobDropped is returned when a job's record could not be claimed. The
// job is discarded; its record is owned by another worker or already terminal.
var ErrJobDropped = errors.New("job dropped")

// ExecutorConfig holds executor settings.
type ExecutorConfig struct {
	// TaskTimeout bounds one pipeline run. Zero disables the bound.
	TaskTimeout time.Duration
}

// Executor claims a task record, runs the pipeline for its kind and writes
// the terminal state.
type Executor struct {
	store     store.TaskStore
	emitter   events.EventEmitter
	pipelines map[domain.TaskKind]Pipeline
	config    ExecutorConfig
	logger    *slog.Logger
}

// NewExecutor creates an Executor. pipelines maps each task kind to the
// pipeline that runs it.
func NewExecutor(
	s store.TaskStore,
	emitter events.EventEmitter,
	pipelines map[domain.TaskKind]Pipeline,
	config ExecutorConfig,
	logger *slog.Logger,
) *Executor {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Executor{
		store:     s,
		emitter:   emitter,
		pipelines: pipelines,
		config:    config,
		logger:    logger.With("component", "executor"),
	}
}

// Execute runs one job. Pipeline failures are written to the task record and
// are not returned; the returned error only reports jobs that could not be
// started.
func (e *Executor) Execute(ctx context.Context, job Job) error {
	log := e.logger.With("task_id", job.TaskID, "task_kind", job.Kind)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrJobDropped, err)
	}

	rec, err := e.store.Claim(ctx, job.TaskID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJobDropped, err)
	}

	started := time.Now()
	if rec.StartedAt != nil {
		started = *rec.StartedAt
	}
	log.InfoContext(ctx, "processing task")
	e.emit(ctx, log, events.NewTaskEvent(events.EventTaskStarted, job.TaskID, job.Kind))

	runCtx := logger.WithLogger(ctx, log)
	if e.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, e.config.TaskTimeout)
		defer cancel()
	}

	reporter := newStoreReporter(e.store, e.emitter, job, started, log)
	result, runErr := e.run(runCtx, job, reporter)

	// Terminal writes must happen even if the worker is shutting down.
	writeCtx := context.WithoutCancel(ctx)
	if runErr == nil {
		runErr = e.complete(writeCtx, job.TaskID, result)
	}

	duration := time.Since(started)
	if runErr != nil {
		msg := failureMessage(runCtx, runErr, e.config.TaskTimeout)
		if err := e.store.Fail(writeCtx, job.TaskID, msg); err != nil {
			log.ErrorContext(ctx, "failed to record task failure", "error", err)
			return nil
		}
		log.WarnContext(ctx, "task failed", "error", msg, "duration", duration)

		event := events.NewTaskEvent(events.EventTaskFailed, job.TaskID, job.Kind)
		event.Message = msg
		event.Duration = duration
		e.emit(writeCtx, log, event)
		return nil
	}

	log.InfoContext(ctx, "task completed successfully", "duration", duration)
	event := events.NewTaskEvent(events.EventTaskCompleted, job.TaskID, job.Kind)
	event.Progress = 1
	event.Duration = duration
	e.emit(writeCtx, log, event)
	return nil
}

// run invokes the pipeline, converting a panic into an internal error.
func (e *Executor) run(ctx context.Context, job Job, reporter ProgressReporter) (result any, err error) {
	pipeline, ok := e.pipelines[job.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no pipeline for kind %q", domain.ErrInternal, job.Kind)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).ErrorContext(ctx, "pipeline panicked",
				"panic", r,
				"stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("%w: pipeline panicked: %v", domain.ErrInternal, r)
		}
	}()

	return pipeline.Run(ctx, job, reporter)
}

func (e *Executor) complete(ctx context.Context, taskID string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: failed to encode result: %v", domain.ErrInternal, err)
	}
	if err := e.store.Complete(ctx, taskID, data); err != nil {
		return fmt.Errorf("failed to record task result: %w", err)
	}
	return nil
}

func (e *Executor) emit(ctx context.Context, log *slog.Logger, event *events.TaskEvent) {
	if err := e.emitter.EmitEvent(ctx, event); err != nil {
		log.WarnContext(ctx, "failed to emit task event",
			"event_type", event.Type,
			"error", err)
	}
}

// failureMessage builds the error string stored on a failed record.
func failureMessage(runCtx context.Context, err error, timeout time.Duration) string {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("task timed out after %s: %w", timeout, err)
	}
	return redact.Error(err)
}
