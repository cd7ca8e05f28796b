package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/datarest/internal/request"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantStatus  int
		wantPanic   bool
		wantEnvelop bool
	}{
		{
			name: "no panic passes through",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
			wantStatus: http.StatusNoContent,
		},
		{
			name: "string panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("boom")
			},
			wantStatus:  http.StatusInternalServerError,
			wantPanic:   true,
			wantEnvelop: true,
		},
		{
			name: "runtime error panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var entities map[string]string
				entities["id"] = "x"
			},
			wantStatus:  http.StatusInternalServerError,
			wantPanic:   true,
			wantEnvelop: true,
		},
		{
			name: "panic after the response started keeps its status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"_embedded":`))
				panic(errors.New("encoder failed"))
			},
			wantStatus: http.StatusOK,
			wantPanic:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.ErrorLevel)
			req := httptest.NewRequest(http.MethodGet, "/api/people", nil)
			req = req.WithContext(request.WithResource(req.Context(), "people"))
			w := httptest.NewRecorder()

			ErrorHandler(zap.New(core))(tt.handler).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}

			recovered := logs.FilterMessage("panic_recovered")
			if (recovered.Len() == 1) != tt.wantPanic {
				t.Fatalf("Expected panic logged = %v, got %d entries", tt.wantPanic, recovered.Len())
			}
			if tt.wantPanic {
				if got := recovered.All()[0].ContextMap()["resource"]; got != "people" {
					t.Errorf("Expected resource people in log, got %v", got)
				}
			}

			if !tt.wantEnvelop {
				return
			}
			if ct := w.Header().Get("Content-Type"); ct != MediaTypeJSON {
				t.Errorf("Expected Content-Type %s, got %s", MediaTypeJSON, ct)
			}
			var body ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Success || body.Error != "Internal Server Error" || body.Path != "/api/people" || body.Timestamp == "" {
				t.Errorf("Unexpected envelope: %+v", body)
			}
			if body.Message != "An unexpected error occurred" {
				t.Errorf("Expected generic message, got %q", body.Message)
			}
		})
	}
}

func TestErrorHandler_ReraisesAbort(t *testing.T) {
	t.Parallel()

	h := ErrorHandler(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("Expected http.ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/people", nil))
	t.Error("Expected panic to propagate")
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	WriteError(w, httptest.NewRequest(http.MethodPost, "/api/orders", nil), http.StatusTooManyRequests, "Rate limit exceeded", nil)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Expected Cache-Control no-store, got %q", got)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Error != "Too Many Requests" || body.Message != "Rate limit exceeded" || body.Path != "/api/orders" {
		t.Errorf("Unexpected envelope: %+v", body)
	}
}
