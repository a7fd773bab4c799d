package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"melhor-casa/utils"
)

type ctxKey int

const loggerKey ctxKey = iota

// TraceHeader carries the request trace id in and out.
const TraceHeader = "X-Trace-ID"

// LoggerMiddleware tags each request with a trace id and logs its outcome.
// An incoming X-Trace-ID is kept when it is a valid UUID.
func LoggerMiddleware(logger *utils.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceHeader)
			if _, err := uuid.Parse(traceID); err != nil {
				traceID = uuid.NewString()
			}
			w.Header().Set(TraceHeader, traceID)

			reqLogger := logger.With("trace_id", traceID)
			ctx := context.WithValue(r.Context(), loggerKey, reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("[api] %s %s → %d (%d bytes, %dms)",
				r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start).Milliseconds())
		})
	}
}

func loggerFrom(ctx context.Context, fallback *utils.Logger) *utils.Logger {
	if l, ok := ctx.Value(loggerKey).(*utils.Logger); ok {
		return l
	}
	return fallback
}
