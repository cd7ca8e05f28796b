// Package request holds per-request helpers shared by middleware and handlers.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const resourceContextKey contextKey = "resource"

// ClientIP returns the address rate limits and audit logs are keyed by. The
// first X-Forwarded-For hop wins over X-Real-IP, which wins over the peer
// address. Ports are dropped so one client maps to one key.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return stripPort(ip)
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return stripPort(xri)
	}
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// WithResource returns a context carrying the name of the resource that owns the request path.
func WithResource(ctx context.Context, resource string) context.Context {
	return context.WithValue(ctx, resourceContextKey, resource)
}

// ResourceFromContext returns the resource name from the request context, or "" if missing or wrong type.
func ResourceFromContext(r *http.Request) string {
	name, _ := r.Context().Value(resourceContextKey).(string)
	return name
}
