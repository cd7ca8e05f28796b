package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names the configuration that changed.
type EventKind string

const (
	// EventKindCORS signals a changed cross-origin override
	EventKindCORS EventKind = "cors"
	// EventKindRatelimit signals a changed rate limit
	EventKindRatelimit EventKind = "ratelimit"
)

// ReconfigureEvent tells running servers to reload part of their configuration.
type ReconfigureEvent struct {
	ID        uuid.UUID `json:"id"`
	Kind      EventKind `json:"kind"`
	Resource  string    `json:"resource,omitempty"` // Empty when the change is not resource specific
	CreatedAt time.Time `json:"created_at"`
}

// NewReconfigureEvent creates an event for kind and resource.
func NewReconfigureEvent(kind EventKind, resource string) *ReconfigureEvent {
	return &ReconfigureEvent{
		ID:        uuid.New(),
		Kind:      kind,
		Resource:  resource,
		CreatedAt: time.Now().UTC(),
	}
}

// Encode returns the wire form of e.
func (e *ReconfigureEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeReconfigureEvent parses and checks an event body.
func DecodeReconfigureEvent(body []byte) (*ReconfigureEvent, error) {
	var e ReconfigureEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	switch e.Kind {
	case EventKindCORS, EventKindRatelimit:
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return &e, nil
}
