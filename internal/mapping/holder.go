package mapping

import (
	"net/http"
	"sync/atomic"

	"github.com/benvon/datarest/internal/request"
)

// Holder publishes the current route table. Rebuilds replace the whole
// table, so readers never observe a partially built one.
type Holder struct {
	table atomic.Pointer[Table]
}

// NewHolder creates a holder publishing t.
func NewHolder(t *Table) *Holder {
	h := &Holder{}
	h.table.Store(t)
	return h
}

// Load returns the current table, or nil before the first Store.
func (h *Holder) Load() *Table {
	return h.table.Load()
}

// Store publishes t.
func (h *Holder) Store(t *Table) {
	h.table.Store(t)
}

// Middleware applies the current table's cross-origin handling. Wrap the
// router with it (rather than registering it on the router) so preflight
// requests are answered before method-based route matching rejects them.
func (h *Holder) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := h.table.Load()
			if t == nil {
				next.ServeHTTP(w, r)
				return
			}
			t.ServeHTTP(w, r, next)
		})
	}
}

// Tag stores the name of the resource owning the request path in the request
// context. It goes outside logging and rate limiting, which read it.
func (h *Holder) Tag() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if t := h.table.Load(); t != nil {
				if route, ok := t.Route(r.URL.Path); ok {
					r = r.WithContext(request.WithResource(r.Context(), route.Resource))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
