package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is a dependency whose reachability is reported by the health check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext calls f.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// HealthChecker handles health check requests
type HealthChecker struct {
	db     Pinger
	redis  Pinger
	extras []namedPinger
}

type namedPinger struct {
	name string
	p    Pinger
}

// NewHealthChecker creates a new health checker. redis may be nil when rate limiting is disabled.
func NewHealthChecker(db Pinger, redis Pinger) *HealthChecker {
	return &HealthChecker{db: db, redis: redis}
}

// AddCheck adds a dependency to the extended checks. Call it before serving.
func (h *HealthChecker) AddCheck(name string, p Pinger) {
	h.extras = append(h.extras, namedPinger{name: name, p: p})
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. With ?mode=extended the
// database, Redis and any added dependencies are checked as well.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = map[string]string{
			"database": h.check(r.Context(), h.db),
			"redis":    h.check(r.Context(), h.redis),
		}
		for _, e := range h.extras {
			response.Checks[e.name] = h.check(r.Context(), e.p)
		}
		for _, result := range response.Checks {
			if result != "healthy" && result != "not configured" {
				response.Status = "unhealthy"
				statusCode = http.StatusServiceUnavailable
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) check(ctx context.Context, p Pinger) string {
	if p == nil {
		return "not configured"
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.PingContext(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}
