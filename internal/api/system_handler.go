package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/IuryyCosta/test-servimed/internal/api/shared"
	"github.com/IuryyCosta/test-servimed/internal/redact"
)

// Service identity reported by / and /health
const (
	ServiceName = "Servimed Scraping API"
	Version     = "1.0.0"
)

// Health states
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// SystemHandler serves the root and health endpoints.
type SystemHandler struct {
	checks map[string]HealthCheck
	now    func() time.Time
}

// NewSystemHandler creates a SystemHandler. Every named check runs on each
// health request; a failing check turns the response into a 503.
func NewSystemHandler(checks map[string]HealthCheck) *SystemHandler {
	return &SystemHandler{checks: checks, now: time.Now}
}

// Health handles GET /health.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: h.now().UTC(),
		Service:   ServiceName,
	}

	if len(h.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		names := make([]string, 0, len(h.checks))
		for name := range h.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		resp.Checks = make(map[string]string, len(names))
		for _, name := range names {
			if err := h.checks[name](ctx); err != nil {
				resp.Status = HealthStatusUnhealthy
				resp.Checks[name] = redact.Error(err)
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}
	shared.RespondWithJSON(w, r, status, resp)
}

// Root handles GET /.
func (h *SystemHandler) Root(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, RootResponse{
		Message: ServiceName,
		Version: Version,
		Endpoints: map[string]string{
			"create_task":  "POST /scraping",
			"check_status": "GET /scraping/{task_id}",
			"health":       "GET /health",
			"metrics":      "GET /metrics",
		},
	})
}
