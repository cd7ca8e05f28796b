package middleware

import (
	"net/http"
	"time"

	logpkg "github.com/benvon/datarest/internal/logger"
	"github.com/benvon/datarest/internal/request"
	"go.uber.org/zap"
)

// Logging creates logging middleware. Requests carrying an Origin header also
// log it, so cross-origin traffic can be told apart per resource.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.Int("status_code", wrapped.statusCode),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if resource := request.ResourceFromContext(r); resource != "" {
				fields = append(fields, zap.String("resource", resource))
			}
			if origin := r.Header.Get("Origin"); origin != "" {
				fields = append(fields, zap.String("origin", logpkg.SanitizeHeader(origin)))
			}
			logger.Info("http_request", fields...)
		})
	}
}

// responseWriter captures the status code for logging and auditing.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}
