package api

import (
	"errors"
	"net/http"

	"github.com/IuryyCosta/test-servimed/internal/api/shared"
	"github.com/IuryyCosta/test-servimed/internal/domain"
	"github.com/IuryyCosta/test-servimed/internal/redact"
	"github.com/IuryyCosta/test-servimed/internal/store"
	"github.com/IuryyCosta/test-servimed/internal/task"
)

// User-facing error messages
const (
	MsgInvalidRequestFormat = "Formato de requisição inválido"
	MsgValidationFailed     = "Dados da requisição inválidos"
	MsgTaskNotFound         = "Tarefa não encontrada"
	MsgTaskExists           = "Tarefa já existe"
	MsgServiceUnavailable   = "Serviço temporariamente indisponível"
	MsgInternal             = "Erro interno ao processar a requisição"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, task.ErrInvalidJob),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a message that can be shown to clients.
// Validation errors name the offending fields but never echo field values,
// so they are returned as-is after redaction.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return MsgInternal
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return redact.Error(err)
	case errors.Is(err, task.ErrInvalidJob),
		errors.Is(err, store.ErrInvalidEntity):
		return MsgValidationFailed
	case errors.Is(err, store.ErrNotFound):
		return MsgTaskNotFound
	case errors.Is(err, store.ErrDuplicate):
		return MsgTaskExists
	case errors.Is(err, task.ErrQueueClosed):
		return MsgServiceUnavailable
	default:
		return MsgInternal
	}
}

// HandleAPIError writes the error response for err. An empty message selects
// GetSafeErrorMessage.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
