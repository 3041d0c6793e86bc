package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/narvanalabs/builder-web/pkg/logger"
)

// requestLogger logs one line per completed request.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqID := middleware.GetReqID(r.Context())
			r = r.WithContext(logger.ContextWithRequestID(r.Context(), reqID))

			defer func() {
				log.Info("request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"request_id", reqID,
					"remote_addr", r.RemoteAddr,
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// recovery turns a handler panic into a 500 with a structured body.
func recovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic recovered",
					"error", rec,
					"stack_trace", string(debug.Stack()),
					"request_id", logger.RequestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				writeError(w, r, newError(CodeInternalError, "An unexpected error occurred"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
