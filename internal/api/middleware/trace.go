package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/careloop/careloop-api/internal/api/shared"
	"github.com/careloop/careloop-api/internal/platform/logger"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// TraceHeader echoes the request trace ID to clients.
const TraceHeader = "X-Trace-ID"

// NewTraceMiddleware adds a trace ID to the request context, attaches a
// request-scoped logger carrying it, and logs the finished request.
// It should run before every other application middleware.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)

			ctx = logger.AppendAttrs(ctx, slog.String("trace_id", traceID))
			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			w.Header().Set(TraceHeader, traceID)
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.DebugContext(ctx, "request finished",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		})
	}
}
