package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/IuryyCosta/test-servimed/internal/domain"
)

// maxTaskIDLength bounds path task IDs before they reach the store.
const maxTaskIDLength = 128

// getPathTaskID extracts the task ID path parameter.
func getPathTaskID(r *http.Request, paramName string) (string, error) {
	id := chi.URLParam(r, paramName)
	if id == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}
	if len(id) > maxTaskIDLength {
		return "", fmt.Errorf("%w: %s is too long", domain.ErrValidation, paramName)
	}
	return id, nil
}
