package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TaskKind identifies which pipeline runs a task.
type TaskKind string

// Known task kinds
const (
	TaskKindScraping TaskKind = "scraping"
	TaskKindOrder    TaskKind = "order"
)

// IsValid reports whether k is a known task kind.
func (k TaskKind) IsValid() bool {
	return k == TaskKindScraping || k == TaskKindOrder
}

// TaskStatus represents the lifecycle state of a task record.
type TaskStatus string

// Lifecycle states. Completed and Failed are terminal.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// IsValid reports whether s is one of the four lifecycle states.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Messages written to records at lifecycle boundaries.
const (
	MessagePending    = "Tarefa aguardando processamento"
	MessageProcessing = "Processando..."
	MessageCompleted  = "Tarefa concluída com sucesso"
)

// Validation errors for task records
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrInvalidTaskKind   = errors.New("invalid task kind")
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrInvalidProgress   = errors.New("progress out of range for status")
	ErrResultErrorMix    = errors.New("result and error inconsistent with status")
)

// TaskRecord tracks one submitted job's lifecycle. It is written only by the
// dispatcher (creation) and the single worker owning the task.
type TaskRecord struct {
	ID          string          `json:"task_id"`
	Kind        TaskKind        `json:"kind"`
	Status      TaskStatus      `json:"status"`
	Progress    float64         `json:"progress"`
	Message     string          `json:"message"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// NewTaskRecord creates a Pending record for the given id and kind.
func NewTaskRecord(id string, kind TaskKind, now time.Time) (*TaskRecord, error) {
	rec := &TaskRecord{
		ID:        id,
		Kind:      kind,
		Status:    TaskStatusPending,
		Progress:  0,
		Message:   MessagePending,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	return rec, nil
}

// Validate checks the record against the lifecycle invariants.
func (r *TaskRecord) Validate() error {
	if r.ID == "" {
		return ErrEmptyTaskID
	}
	if !r.Kind.IsValid() {
		return ErrInvalidTaskKind
	}
	if !r.Status.IsValid() {
		return ErrInvalidTaskStatus
	}

	switch r.Status {
	case TaskStatusPending:
		if r.Progress != 0 {
			return ErrInvalidProgress
		}
		if r.Error != nil || r.Result != nil {
			return ErrResultErrorMix
		}
	case TaskStatusProcessing:
		if r.Progress < 0 || r.Progress >= 1 {
			return ErrInvalidProgress
		}
		if r.Error != nil || r.Result != nil {
			return ErrResultErrorMix
		}
	case TaskStatusCompleted:
		if r.Progress != 1 {
			return ErrInvalidProgress
		}
		if r.Error != nil || r.Result == nil {
			return ErrResultErrorMix
		}
	case TaskStatusFailed:
		if r.Progress < 0 || r.Progress >= 1 {
			return ErrInvalidProgress
		}
		if r.Error == nil || r.Result != nil {
			return ErrResultErrorMix
		}
	}

	return nil
}

// Clone returns a deep copy so readers never share state with the writer.
func (r *TaskRecord) Clone() *TaskRecord {
	c := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	if r.Result != nil {
		c.Result = append(json.RawMessage(nil), r.Result...)
	}
	return &c
}

// MarkProcessing moves a Pending record to Processing.
func (r *TaskRecord) MarkProcessing(now time.Time) error {
	if r.Status != TaskStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, TaskStatusProcessing)
	}
	t := now.UTC()
	r.Status = TaskStatusProcessing
	r.StartedAt = &t
	r.Message = MessageProcessing
	r.UpdatedAt = t
	return nil
}

// ApplyCheckpoint records progress for a Processing record. Progress must not
// decrease and must stay below 1.
func (r *TaskRecord) ApplyCheckpoint(progress float64, message string, now time.Time) error {
	if r.Status != TaskStatusProcessing {
		return fmt.Errorf("%w: checkpoint on %s task", ErrInvalidTransition, r.Status)
	}
	if progress < r.Progress || progress >= 1 {
		return fmt.Errorf("%w: progress %.2f after %.2f", ErrInvalidTransition, progress, r.Progress)
	}
	r.Progress = progress
	r.Message = message
	r.UpdatedAt = now.UTC()
	return nil
}

// MarkCompleted moves a Processing record to Completed with the given result.
func (r *TaskRecord) MarkCompleted(result json.RawMessage, now time.Time) error {
	if r.Status != TaskStatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, TaskStatusCompleted)
	}
	if len(result) == 0 {
		return fmt.Errorf("%w: completed task requires a result", ErrInvalidTransition)
	}
	t := now.UTC()
	r.Status = TaskStatusCompleted
	r.Progress = 1
	r.Message = MessageCompleted
	r.Result = append(json.RawMessage(nil), result...)
	r.Error = nil
	r.CompletedAt = &t
	r.UpdatedAt = t
	return nil
}

// MarkFailed moves a Pending or Processing record to Failed. Progress keeps its
// last value.
func (r *TaskRecord) MarkFailed(errMsg string, now time.Time) error {
	if r.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, TaskStatusFailed)
	}
	if errMsg == "" {
		errMsg = ErrInternal.Error()
	}
	t := now.UTC()
	r.Status = TaskStatusFailed
	r.Message = errMsg
	r.Error = &errMsg
	r.Result = nil
	r.CompletedAt = &t
	r.UpdatedAt = t
	return nil
}
