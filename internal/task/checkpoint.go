package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/events"
	"github.com/IuryyCosta/test-servimed/internal/store"
)

// Checkpoint is a named point in a pipeline where progress and message are
// written to the task record.
type Checkpoint struct {
	Name     string
	Progress float64
	Message  string
}

// Scraping pipeline checkpoints
var (
	CheckpointAuthenticated = Checkpoint{Name: "authenticated", Progress: 0.3, Message: "authenticated, extracting"}
)

// CheckpointExtracted is reached once n products were extracted.
func CheckpointExtracted(n int) Checkpoint {
	return Checkpoint{
		Name:     "extracted",
		Progress: 0.7,
		Message:  fmt.Sprintf("extracted %d products, delivering callback", n),
	}
}

// Order pipeline checkpoints
var (
	CheckpointLoggedIn   = Checkpoint{Name: "logged_in", Progress: 0.2, Message: "logged in, purchasing items"}
	CheckpointPurchased  = Checkpoint{Name: "purchased", Progress: 0.5, Message: "items purchased, registering order"}
	CheckpointRegistered = Checkpoint{Name: "registered", Progress: 0.7, Message: "order registered, updating status"}
	CheckpointUpdated    = Checkpoint{Name: "updated", Progress: 0.85, Message: "order updated, delivering confirmation"}
)

// ProgressReporter receives pipeline checkpoints and callback outcomes.
type ProgressReporter interface {
	// Report records a checkpoint. An error means the record no longer
	// accepts progress and the pipeline must stop.
	Report(ctx context.Context, cp Checkpoint) error

	// RecordCallback publishes the outcome of a callback delivery.
	RecordCallback(ctx context.Context, outcome *domain.CallbackOutcome)
}

// storeReporter writes checkpoints to the store, then emits an event.
type storeReporter struct {
	store   store.TaskStore
	emitter events.EventEmitter
	taskID  string
	kind    domain.TaskKind
	started time.Time
	logger  *slog.Logger
}

func newStoreReporter(
	s store.TaskStore,
	emitter events.EventEmitter,
	job Job,
	started time.Time,
	logger *slog.Logger,
) *storeReporter {
	return &storeReporter{
		store:   s,
		emitter: emitter,
		taskID:  job.TaskID,
		kind:    job.Kind,
		started: started,
		logger:  logger,
	}
}

func (r *storeReporter) Report(ctx context.Context, cp Checkpoint) error {
	if err := r.store.Checkpoint(ctx, r.taskID, cp.Progress, cp.Message); err != nil {
		return fmt.Errorf("failed to record checkpoint %s: %w", cp.Name, err)
	}

	r.logger.InfoContext(ctx, "checkpoint reached",
		"checkpoint", cp.Name,
		"progress", cp.Progress)

	event := events.NewTaskEvent(events.EventTaskCheckpoint, r.taskID, r.kind)
	event.Checkpoint = cp.Name
	event.Progress = cp.Progress
	event.Message = cp.Message
	event.Duration = time.Since(r.started)
	r.emit(ctx, event)

	return nil
}

func (r *storeReporter) RecordCallback(ctx context.Context, outcome *domain.CallbackOutcome) {
	eventType := events.EventCallbackFailed
	if outcome.Sent() {
		eventType = events.EventCallbackSent
	}

	event := events.NewTaskEvent(eventType, r.taskID, r.kind)
	if outcome != nil {
		event.Message = outcome.Status
	}
	r.emit(ctx, event)
}

func (r *storeReporter) emit(ctx context.Context, event *events.TaskEvent) {
	if err := r.emitter.EmitEvent(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "failed to emit task event",
			"event_type", event.Type,
			"error", err)
	}
}
