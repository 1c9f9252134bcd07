package api

import (
	"encoding/json"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/task"
)

// Response messages for accepted submissions
const (
	MsgScrapingTaskCreated = "Tarefa de scraping criada com sucesso"
	MsgOrderTaskCreated    = "Tarefa de pedido criada com sucesso"
)

// CreateTaskResponse is returned by POST /scraping.
type CreateTaskResponse struct {
	TaskID    string          `json:"task_id"`
	Kind      domain.TaskKind `json:"kind"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	CreatedAt time.Time       `json:"created_at"`
}

// TaskStatusResponse is returned by GET /scraping/{task_id}. Absent optional
// fields are serialized as null.
type TaskStatusResponse struct {
	TaskID      string          `json:"task_id"`
	Kind        domain.TaskKind `json:"kind"`
	Status      string          `json:"status"`
	Progress    float64         `json:"progress"`
	Message     string          `json:"message"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	Error       *string         `json:"error"`
	Result      json.RawMessage `json:"result"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// RootResponse is returned by GET /.
type RootResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

func newCreateTaskResponse(rec *domain.TaskRecord) CreateTaskResponse {
	msg := MsgScrapingTaskCreated
	if rec.Kind == domain.TaskKindOrder {
		msg = MsgOrderTaskCreated
	}
	return CreateTaskResponse{
		TaskID:    rec.ID,
		Kind:      rec.Kind,
		Status:    string(rec.Status),
		Message:   msg,
		CreatedAt: rec.CreatedAt,
	}
}

func newTaskStatusResponse(view *task.StatusView) TaskStatusResponse {
	resp := TaskStatusResponse{
		TaskID:      view.TaskID,
		Kind:        view.Kind,
		Status:      view.Status,
		Progress:    view.Progress,
		Message:     view.Message,
		CreatedAt:   view.CreatedAt,
		StartedAt:   view.StartedAt,
		CompletedAt: view.CompletedAt,
		Error:       view.Error,
	}
	if len(view.Result) > 0 {
		resp.Result = view.Result
	}
	return resp
}
