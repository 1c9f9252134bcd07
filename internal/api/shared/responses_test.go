package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IuryyCosta/test-servimed/internal/platform/logger"
)

// newLoggedRequest returns a request whose context carries a trace ID and a
// debug-level logger writing into the returned builder.
func newLoggedRequest(traceID string) (*http.Request, *strings.Builder) {
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := logger.WithLogger(context.Background(), log)
	if traceID != "" {
		ctx = WithTraceID(ctx, traceID)
	}
	req := httptest.NewRequest(http.MethodGet, "/scraping/abc", nil).WithContext(ctx)
	return req, &buf
}

func TestRespondWithJSON(t *testing.T) {
	t.Parallel()

	req, _ := newLoggedRequest("")
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, map[string]any{"task_id": "t1", "progress": 0.3})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"task_id":"t1","progress":0.3}`, w.Body.String())
}

func TestRespondWithJSON_EncodingError(t *testing.T) {
	t.Parallel()

	req, logs := newLoggedRequest("")
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, map[string]any{"bad": make(chan int)})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), "failed to encode JSON response")
}

func TestRespondWithError(t *testing.T) {
	t.Parallel()

	t.Run("with trace id", func(t *testing.T) {
		t.Parallel()

		req, _ := newLoggedRequest("deadbeefcafe")
		w := httptest.NewRecorder()

		RespondWithError(w, req, http.StatusNotFound, "Tarefa não encontrada")

		assert.Equal(t, http.StatusNotFound, w.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Tarefa não encontrada", body.Error)
		assert.Equal(t, "deadbeefcafe", body.TraceID)
	})

	t.Run("without trace id", func(t *testing.T) {
		t.Parallel()

		req, _ := newLoggedRequest("")
		w := httptest.NewRecorder()

		RespondWithError(w, req, http.StatusBadRequest, "Invalid request format")

		assert.JSONEq(t, `{"error":"Invalid request format"}`, w.Body.String())
	})
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		elevate   bool
		wantLevel string
	}{
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "level=ERROR"},
		{name: "client error", status: http.StatusBadRequest, wantLevel: "level=DEBUG"},
		{name: "elevated client error", status: http.StatusBadRequest, elevate: true, wantLevel: "level=WARN"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantLevel: "level=WARN"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, logs := newLoggedRequest("deadbeefcafe")
			w := httptest.NewRecorder()
			err := errors.New("dial postgres://admin:hunter2@db:5432/tasks failed")

			var opts []ResponseOption
			if tt.elevate {
				opts = append(opts, WithElevatedLogLevel())
			}
			RespondWithErrorAndLog(w, req, tt.status, "Erro interno", err, opts...)

			assert.Equal(t, tt.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "Erro interno", body.Error)
			assert.Equal(t, "deadbeefcafe", body.TraceID)
			assert.NotContains(t, w.Body.String(), "hunter2")

			out := logs.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "trace_id=deadbeefcafe")
			assert.Contains(t, out, "error_type=")
			assert.NotContains(t, out, "hunter2", "errors are redacted before logging")
		})
	}
}
