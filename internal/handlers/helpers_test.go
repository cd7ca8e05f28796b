package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestRequest builds a request whose body is the JSON encoding of body.
func newTestRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", ContentTypeHAL)
	}
	return req
}

func TestResponders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		respond         func(w http.ResponseWriter)
		wantStatus      int
		wantContentType string
		check           func(t *testing.T, body map[string]any)
	}{
		{
			name: "json envelope",
			respond: func(w http.ResponseWriter) {
				respondJSON(w, http.StatusOK, []string{"people", "orders"})
			},
			wantStatus:      http.StatusOK,
			wantContentType: "application/json",
			check: func(t *testing.T, body map[string]any) {
				if body["success"] != true {
					t.Errorf("Expected success true, got %v", body["success"])
				}
				if data, ok := body["data"].([]any); !ok || len(data) != 2 {
					t.Errorf("Expected 2 data items, got %v", body["data"])
				}
				ts, _ := body["timestamp"].(string)
				if _, err := time.Parse(time.RFC3339, ts); err != nil {
					t.Errorf("Timestamp %q is not RFC3339: %v", ts, err)
				}
			},
		},
		{
			name: "hal document is not wrapped",
			respond: func(w http.ResponseWriter) {
				respondHAL(w, http.StatusCreated, map[string]any{"_links": map[string]Link{"self": {Href: "/api/people/1"}}})
			},
			wantStatus:      http.StatusCreated,
			wantContentType: ContentTypeHAL,
			check: func(t *testing.T, body map[string]any) {
				if _, ok := body["success"]; ok {
					t.Error("HAL documents must not be wrapped in the success envelope")
				}
				if _, ok := body["_links"]; !ok {
					t.Error("Expected _links in HAL document")
				}
			},
		},
		{
			name: "error envelope uses status text",
			respond: func(w http.ResponseWriter) {
				respondError(w, http.StatusNotFound, "Entity not found")
			},
			wantStatus:      http.StatusNotFound,
			wantContentType: "application/json",
			check: func(t *testing.T, body map[string]any) {
				if body["success"] != false || body["error"] != "Not Found" || body["message"] != "Entity not found" {
					t.Errorf("Unexpected error envelope: %v", body)
				}
			},
		},
		{
			name: "long error messages are truncated",
			respond: func(w http.ResponseWriter) {
				respondError(w, http.StatusBadRequest, strings.Repeat("x", 500))
			},
			wantStatus:      http.StatusBadRequest,
			wantContentType: "application/json",
			check: func(t *testing.T, body map[string]any) {
				msg, _ := body["message"].(string)
				if len(msg) != maxErrorMessageLength+3 || !strings.HasSuffix(msg, "...") {
					t.Errorf("Expected truncated message, got %d chars", len(msg))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			tt.respond(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != tt.wantContentType {
				t.Errorf("Expected Content-Type %q, got %q", tt.wantContentType, ct)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			tt.check(t, body)
		})
	}
}

func TestRespondHAL_EncodeFailure(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	respondHAL(w, http.StatusOK, map[string]any{"bad": make(chan int)})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct == ContentTypeHAL {
		t.Error("Failed documents must not be labelled as HAL")
	}
}
