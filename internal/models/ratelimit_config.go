package models

import "time"

// RatelimitConfig holds the request rate (e.g. "5-S", "100-M") for one scope:
// "default" or a resource name.
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
