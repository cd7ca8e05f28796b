package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entity is a stored document belonging to a resource.
type Entity struct {
	ID        uuid.UUID       `json:"id"`
	Resource  string          `json:"-"`
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
