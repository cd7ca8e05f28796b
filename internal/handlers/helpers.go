package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// ContentTypeHAL is the media type of every repository response.
const ContentTypeHAL = "application/hal+json"

const maxErrorMessageLength = 200

type successEnvelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

type errorEnvelope struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// respondJSON sends data in the success envelope used by the operational endpoints.
func respondJSON(w http.ResponseWriter, status int, data any) {
	writeBody(w, status, "application/json", successEnvelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// respondHAL sends a HAL document as is, without the success envelope.
func respondHAL(w http.ResponseWriter, status int, doc any) {
	writeBody(w, status, ContentTypeHAL, doc)
}

// respondError sends the error envelope. The error field is the status text.
func respondError(w http.ResponseWriter, status int, message string) {
	writeBody(w, status, "application/json", errorEnvelope{
		Error:     http.StatusText(status),
		Message:   truncateMessage(message),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// writeBody encodes v before committing the status so encoding failures
// still produce a 500.
func writeBody(w http.ResponseWriter, status int, contentType string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// truncateMessage keeps error messages short so internal details are not echoed back in full.
func truncateMessage(message string) string {
	if len(message) > maxErrorMessageLength {
		return message[:maxErrorMessageLength] + "..."
	}
	return message
}
