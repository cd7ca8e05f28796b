package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	logpkg "github.com/benvon/datarest/internal/logger"
	"github.com/benvon/datarest/internal/request"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON error envelope shared by middleware and handlers.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// ErrorHandler recovers handler panics. A 500 envelope is written unless the
// response has already started; http.ErrAbortHandler is re-raised so the
// server still aborts the connection.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracked := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic_recovered",
					zap.Any("error", rec),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("resource", request.ResourceFromContext(r)),
					zap.Bool("response_started", tracked.wroteHeader),
					zap.Stack("stack"),
				)
				if tracked.wroteHeader {
					return
				}
				WriteError(w, r, http.StatusInternalServerError, "An unexpected error occurred", logger)
			}()

			next.ServeHTTP(tracked, r)
		})
	}
}

// WriteError sends the JSON error envelope. The error field is the status text.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", MediaTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
	if err != nil && logger != nil {
		logger.Error("failed_to_encode_error_response",
			zap.Error(err),
			zap.Int("status_code", status),
		)
	}
}
