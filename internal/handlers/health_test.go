package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthChecker(t *testing.T) {
	t.Parallel()

	up := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		db         Pinger
		redis      Pinger
		mode       string
		wantStatus int
		wantHealth string
		wantChecks map[string]string
	}{
		{
			name:       "basic mode skips checks",
			db:         down,
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name:       "extended all healthy",
			db:         up,
			redis:      up,
			mode:       "extended",
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
			wantChecks: map[string]string{"database": "healthy", "redis": "healthy"},
		},
		{
			name:       "extended redis not configured",
			db:         up,
			mode:       "extended",
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
			wantChecks: map[string]string{"database": "healthy", "redis": "not configured"},
		},
		{
			name:       "extended database down",
			db:         down,
			redis:      up,
			mode:       "extended",
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
			wantChecks: map[string]string{"database": "unhealthy: connection refused", "redis": "healthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthChecker(tt.db, tt.redis)
			target := "/healthz"
			if tt.mode != "" {
				target += "?mode=" + tt.mode
			}
			w := httptest.NewRecorder()
			h.HealthCheck(w, httptest.NewRequest(http.MethodGet, target, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Status != tt.wantHealth {
				t.Errorf("Expected status %q, got %q", tt.wantHealth, resp.Status)
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Errorf("Expected checks %v, got %v", tt.wantChecks, resp.Checks)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("Expected check[%s] = %q, got %q", k, v, resp.Checks[k])
				}
			}
		})
	}
}

func TestHealthChecker_AddCheck(t *testing.T) {
	t.Parallel()

	up := PingFunc(func(ctx context.Context) error { return nil })
	h := NewHealthChecker(up, nil)
	h.AddCheck("rabbitmq", PingFunc(func(ctx context.Context) error { return errors.New("connection is closed") }))

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz?mode=extended", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got := resp.Checks["rabbitmq"]; got != "unhealthy: connection is closed" {
		t.Errorf("Expected rabbitmq check to fail, got %q", got)
	}
}
