package middleware

import (
	"log/slog"
	"net/http"

	"github.com/IuryyCosta/test-servimed/internal/api/shared"
	"github.com/IuryyCosta/test-servimed/internal/platform/logger"
)

// NewTraceMiddleware returns middleware that gives every request a trace ID
// and a request-scoped logger carrying it. A valid incoming X-Trace-Id header
// is reused; otherwise a new ID is generated. The ID is echoed back on the
// response.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if incoming := r.Header.Get(shared.TraceIDHeader); shared.ValidTraceID(incoming) {
				ctx = shared.WithTraceID(ctx, incoming)
			} else {
				ctx = shared.SetTraceID(ctx)
			}
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set(shared.TraceIDHeader, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
