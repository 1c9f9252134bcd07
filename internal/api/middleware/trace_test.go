package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/IuryyCosta/test-servimed/internal/api/shared"
	"github.com/IuryyCosta/test-servimed/internal/platform/logger"
)

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "generates an id", incoming: ""},
		{name: "reuses a valid id", incoming: "0123456789abcdef", reuse: true},
		{name: "replaces an invalid id", incoming: "not a trace id"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf strings.Builder
			base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			var seenTraceID string
			var seenLogger *slog.Logger
			next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seenTraceID = shared.GetTraceID(r.Context())
				seenLogger = logger.FromContext(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.incoming != "" {
				req.Header.Set(shared.TraceIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			NewTraceMiddleware(base)(next).ServeHTTP(w, req)

			assert.NotEmpty(t, seenTraceID)
			assert.Equal(t, seenTraceID, w.Header().Get(shared.TraceIDHeader))
			if tt.reuse {
				assert.Equal(t, tt.incoming, seenTraceID)
			} else {
				assert.NotEqual(t, tt.incoming, seenTraceID)
				assert.Len(t, seenTraceID, 32)
			}

			seenLogger.Info("handled")
			assert.Contains(t, buf.String(), "request started")
			assert.Contains(t, buf.String(), "trace_id="+seenTraceID)
		})
	}
}

func TestTraceMiddleware_DoesNotLeakIntoOtherRequests(t *testing.T) {
	t.Parallel()

	base := slog.New(slog.NewTextHandler(io.Discard, nil))
	ids := make(map[string]bool)
	h := NewTraceMiddleware(base)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ids[shared.GetTraceID(r.Context())] = true
	}))

	for i := 0; i < 5; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	assert.Len(t, ids, 5)
}
