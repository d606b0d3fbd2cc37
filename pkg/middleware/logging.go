package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// unimplementedHeader mirrors handlers.UnimplementedHeader without importing
// the handlers package.
const unimplementedHeader = "X-Query-Unimplemented"

// RequestLogger returns middleware that logs HTTP requests. Server errors are
// logged at WARN, everything else at DEBUG. Responses for statements the query
// layer did not execute are flagged.
// Pass nil logger to disable logging (makes it optional/injectable).
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if wrapped.Header().Get(unimplementedHeader) == "true" {
				fields = append(fields, zap.Bool("query_unimplemented", true))
			}

			if wrapped.statusCode >= http.StatusInternalServerError {
				logger.Warn("HTTP request", fields...)
				return
			}
			logger.Debug("HTTP request", fields...)
		})
	}
}

// Recoverer converts a panic in next into a 500 response and logs it.
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if logger != nil {
						logger.Error("Panic serving request",
							zap.String("method", r.Method),
							zap.String("path", r.URL.Path),
							zap.Any("panic", rec),
							zap.Stack("stack"))
					}
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
