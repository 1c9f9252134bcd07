package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/events"
	"github.com/IuryyCosta/test-servimed/internal/redact"
	"github.com/IuryyCosta/test-servimed/internal/store"
)

// Dispatcher validates submissions, creates their task records and hands
// jobs to the queue.
type Dispatcher struct {
	store   store.TaskStore
	queue   Queue
	emitter events.EventEmitter
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(s store.TaskStore, queue Queue, emitter events.EventEmitter, logger *slog.Logger) *Dispatcher {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Dispatcher{
		store:   s,
		queue:   queue,
		emitter: emitter,
		logger:  logger.With("component", "dispatcher"),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Submit accepts a scraping or order request. Validation failures wrap
// domain.ErrValidation and leave no record behind. When the queue refuses
// the job, the new record is marked Failed and an error wrapping
// domain.ErrInternal is returned.
func (d *Dispatcher) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.TaskRecord, error) {
	kind, err := req.ResolveKind()
	if err != nil {
		return nil, err
	}

	now := d.now()
	job := Job{Kind: kind, EnqueuedAt: now.UTC()}
	switch kind {
	case domain.TaskKindScraping:
		r := req.Scraping()
		if err := r.Validate(); err != nil {
			return nil, err
		}
		job.Scraping = &r
	case domain.TaskKindOrder:
		r := req.Order()
		if err := r.Validate(); err != nil {
			return nil, err
		}
		job.Order = &r
	}

	rec, err := domain.NewTaskRecord(d.newID(), kind, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInternal, err)
	}
	job.TaskID = rec.ID

	if err := d.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create task record: %w", err)
	}

	log := d.logger.With("task_id", rec.ID, "task_kind", kind)

	if err := d.queue.Enqueue(ctx, job); err != nil {
		msg := "failed to enqueue task: " + redact.Error(err)
		if failErr := d.store.Fail(context.WithoutCancel(ctx), rec.ID, msg); failErr != nil {
			log.ErrorContext(ctx, "failed to mark unqueued task as failed", "error", failErr)
		}
		log.ErrorContext(ctx, "task could not be enqueued", "error", redact.Error(err))
		return nil, fmt.Errorf("%w: failed to enqueue task: %w", domain.ErrInternal, err)
	}

	log.InfoContext(ctx, "task submitted")
	if err := d.emitter.EmitEvent(ctx, events.NewTaskEvent(events.EventTaskSubmitted, rec.ID, kind)); err != nil {
		log.WarnContext(ctx, "failed to emit task event", "error", err)
	}

	return rec, nil
}
