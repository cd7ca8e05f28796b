package middleware

import (
	"fmt"
	"net/http"
)

// DefaultMaxRequestSize caps entity bodies at 1MB.
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize rejects bodies declared larger than maxBytes with 413 and
// caps the rest with http.MaxBytesReader, whose *http.MaxBytesError the
// entity handlers map to 413 as well.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}
	tooLarge := fmt.Sprintf("Request body exceeds %d bytes", maxBytes)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				WriteError(w, r, http.StatusRequestEntityTooLarge, tooLarge, nil)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
