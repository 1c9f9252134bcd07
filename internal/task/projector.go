package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/store"
)

// Status view vocabulary and messages
const (
	StatusUnknown = "unknown"

	StatusMessageFailed  = "Tarefa falhou: "
	StatusMessageUnknown = "Status desconhecido"
)

// StatusView is the externally visible state of a task.
type StatusView struct {
	TaskID      string
	Kind        domain.TaskKind
	Status      string
	Progress    float64
	Message     string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       *string
	Result      json.RawMessage
}

// Projector turns stored task records into status views.
type Projector struct {
	store store.TaskStore
}

// NewProjector creates a Projector.
func NewProjector(s store.TaskStore) *Projector {
	return &Projector{store: s}
}

// GetStatus returns the view of the task with the given id.
// Returns store.ErrTaskNotFound for unknown ids.
func (p *Projector) GetStatus(ctx context.Context, id string) (*StatusView, error) {
	rec, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Project(rec), nil
}

// Project maps a record to its view. The result is exposed only on completed
// tasks and the error only on failed ones.
func Project(rec *domain.TaskRecord) *StatusView {
	view := &StatusView{
		TaskID:      rec.ID,
		Kind:        rec.Kind,
		Status:      string(rec.Status),
		Progress:    rec.Progress,
		CreatedAt:   rec.CreatedAt,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
	}

	switch rec.Status {
	case domain.TaskStatusPending:
		view.Message = domain.MessagePending
	case domain.TaskStatusProcessing:
		view.Message = rec.Message
		if view.Message == "" {
			view.Message = domain.MessageProcessing
		}
	case domain.TaskStatusCompleted:
		view.Message = domain.MessageCompleted
		view.Result = rec.Result
	case domain.TaskStatusFailed:
		errMsg := ""
		if rec.Error != nil {
			errMsg = *rec.Error
		}
		view.Message = StatusMessageFailed + errMsg
		view.Error = &errMsg
	default:
		view.Status = StatusUnknown
		view.Message = StatusMessageUnknown
	}

	return view
}
