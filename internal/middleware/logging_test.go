package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/datarest/internal/request"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		resource   string
		origin     string
		handler    http.HandlerFunc
		wantStatus int64
		wantFields map[string]any
		absent     []string
	}{
		{
			name:   "tagged cross-origin request",
			method: http.MethodPost,
			path:   "/api/people",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			},
			resource:   "people",
			origin:     "https://app.example",
			wantStatus: http.StatusCreated,
			wantFields: map[string]any{"resource": "people", "origin": "https://app.example", "method": http.MethodPost},
		},
		{
			name:   "body without explicit status",
			method: http.MethodGet,
			path:   "/api",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"_links":{}}`))
			},
			wantStatus: http.StatusOK,
			absent:     []string{"resource", "origin"},
		},
		{
			name:   "first status wins",
			method: http.MethodGet,
			path:   "/api/unknown",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.WriteHeader(http.StatusOK)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "origin control characters are stripped",
			method: http.MethodOptions,
			path:   "/api/orders",
			origin: "https://evil.example\r\nX-Injected: 1",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
			wantStatus: http.StatusNoContent,
			wantFields: map[string]any{"origin": "https://evil.exampleX-Injected: 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.InfoLevel)
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.resource != "" {
				req = req.WithContext(request.WithResource(req.Context(), tt.resource))
			}
			if tt.origin != "" {
				req.Header["Origin"] = []string{tt.origin}
			}
			Logging(zap.New(core))(tt.handler).ServeHTTP(httptest.NewRecorder(), req)

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 http_request entry, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["status_code"] != tt.wantStatus {
				t.Errorf("Expected status_code %d, got %v", tt.wantStatus, fields["status_code"])
			}
			if _, ok := fields["duration_ms"]; !ok {
				t.Error("Expected duration_ms field")
			}
			for k, v := range tt.wantFields {
				if fields[k] != v {
					t.Errorf("Expected %s = %v, got %v", k, v, fields[k])
				}
			}
			for _, k := range tt.absent {
				if _, ok := fields[k]; ok {
					t.Errorf("Expected no %s field, got %v", k, fields[k])
				}
			}
		})
	}
}
