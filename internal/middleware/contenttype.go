package middleware

import (
	"mime"
	"net/http"
)

// Media types accepted for request bodies.
const (
	MediaTypeJSON    = "application/json"
	MediaTypeHALJSON = "application/hal+json"
)

// ContentType validates Content-Type headers for requests with bodies.
// Plain JSON and HAL JSON are accepted, with or without parameters.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				WriteError(w, r, http.StatusBadRequest, "Content-Type header is required", nil)
				return
			}

			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || (mediaType != MediaTypeJSON && mediaType != MediaTypeHALJSON) {
				WriteError(w, r, http.StatusUnsupportedMediaType, "Content-Type must be application/json or application/hal+json", nil)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
