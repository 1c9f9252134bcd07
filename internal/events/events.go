package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/IuryyCosta/test-servimed/internal/domain"
)

// EventType names a point in a task's lifecycle.
type EventType string

// Lifecycle event types
const (
	EventTaskSubmitted  EventType = "task.submitted"
	EventTaskStarted    EventType = "task.started"
	EventTaskCheckpoint EventType = "task.checkpoint"
	EventTaskCompleted  EventType = "task.completed"
	EventTaskFailed     EventType = "task.failed"
	EventCallbackSent   EventType = "callback.sent"
	EventCallbackFailed EventType = "callback.failed"
)

// TaskEvent describes a lifecycle change of one task. Events are emitted after
// the corresponding store write succeeded.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is the lifecycle point this event describes
	Type EventType `json:"type"`

	TaskID   string          `json:"task_id"`
	TaskKind domain.TaskKind `json:"task_kind"`

	// Checkpoint is the checkpoint name for EventTaskCheckpoint events
	Checkpoint string  `json:"checkpoint,omitempty"`
	Progress   float64 `json:"progress"`
	Message    string  `json:"message,omitempty"`

	// Duration is the time since the task started, set on terminal events
	Duration time.Duration `json:"duration,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskEvent creates a TaskEvent with a fresh ID and timestamp.
func NewTaskEvent(eventType EventType, taskID string, kind domain.TaskKind) *TaskEvent {
	return &TaskEvent{
		ID:        uuid.New(),
		Type:      eventType,
		TaskID:    taskID,
		TaskKind:  kind,
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the task engine to publish lifecycle changes without direct
// knowledge of metrics or other observers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f(ctx, event).
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}
