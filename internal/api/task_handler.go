package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/IuryyCosta/test-servimed/internal/api/shared"
	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/task"
)

// TaskIDParam is the route parameter holding the task ID.
const TaskIDParam = "task_id"

// TaskSubmitter accepts new tasks.
type TaskSubmitter interface {
	Submit(ctx context.Context, req domain.SubmitRequest) (*domain.TaskRecord, error)
}

// TaskStatusReader returns the externally visible state of a task.
type TaskStatusReader interface {
	GetStatus(ctx context.Context, id string) (*task.StatusView, error)
}

// TaskHandler serves task submission and status polling.
type TaskHandler struct {
	submitter TaskSubmitter
	reader    TaskStatusReader
	logger    *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(submitter TaskSubmitter, reader TaskStatusReader, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		submitter: submitter,
		reader:    reader,
		logger:    logger.With("component", "task_handler"),
	}
}

// CreateTask handles POST /scraping. The body is a scraping or an order
// request; the optional "kind" field selects the pipeline explicitly.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, MsgInvalidRequestFormat, err)
		return
	}

	rec, err := h.submitter.Submit(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	h.logger.InfoContext(r.Context(), "task created",
		"task_id", rec.ID,
		"task_kind", rec.Kind,
		"trace_id", shared.GetTraceID(r.Context()))

	shared.RespondWithJSON(w, r, http.StatusOK, newCreateTaskResponse(rec))
}

// GetTask handles GET /scraping/{task_id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathTaskID(r, TaskIDParam)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	view, err := h.reader.GetStatus(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newTaskStatusResponse(view))
}
