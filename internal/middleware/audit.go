package middleware

import (
	"net/http"

	logpkg "github.com/benvon/datarest/internal/logger"
	"github.com/benvon/datarest/internal/request"
	"go.uber.org/zap"
)

// Audit logs security-related events: forbidden responses, rate limit
// violations and preflight requests whose origin or method was refused.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := func() []zap.Field {
				return []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("resource", request.ResourceFromContext(r)),
					zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				}
			}

			switch wrapped.statusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				logger.Warn("security_event", append(fields(), zap.Int("status_code", wrapped.statusCode))...)
			case http.StatusTooManyRequests:
				logger.Warn("rate_limit_violation", fields()...)
			}

			if isPreflight(r) && w.Header().Get("Access-Control-Allow-Origin") == "" {
				logger.Warn("cors_preflight_rejected", append(fields(),
					zap.String("origin", logpkg.SanitizeHeader(r.Header.Get("Origin"))),
					zap.String("requested_method", logpkg.SanitizeHeader(r.Header.Get("Access-Control-Request-Method"))),
				)...)
			}
		})
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}
