package middleware

import (
	"net/http"
	"time"
)

// DefaultRequestTimeout is the default request timeout (30 seconds)
const DefaultRequestTimeout = 30 * time.Second

const timeoutBody = `{"success":false,"error":"Service Unavailable","message":"Request timed out"}`

// Timeout cancels the request context after timeout and answers 503 with the
// JSON error envelope if the handler has not written a response by then.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		th := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			th.ServeHTTP(&timeoutResponseWriter{ResponseWriter: w}, r)
		})
	}
}

// timeoutResponseWriter labels the timeout envelope as JSON. http.TimeoutHandler
// writes it without headers, and a handler's own response arrives with its
// headers already copied, so only untyped 503s are touched.
type timeoutResponseWriter struct {
	http.ResponseWriter
}

func (w *timeoutResponseWriter) WriteHeader(code int) {
	h := w.Header()
	if code == http.StatusServiceUnavailable && h.Get("Content-Type") == "" {
		h.Set("Content-Type", MediaTypeJSON)
		h.Set("Cache-Control", "no-store")
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timeoutResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
