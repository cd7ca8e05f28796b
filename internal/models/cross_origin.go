package models

import "time"

// Sentinel values that mark a CrossOrigin attribute as not explicitly set.
const (
	// AnyOrigin is the wildcard used for origins and allowed headers.
	AnyOrigin = "*"
	// UnsetMaxAge marks MaxAge as not configured. Any negative value is treated the same way.
	UnsetMaxAge int64 = -1
	// UnsetCredentials marks AllowCredentials as not configured.
	UnsetCredentials = ""
)

// CrossOrigin is the cross-origin metadata attached to a route-owning resource.
// Each attribute carries its own "not set" sentinel so that defaulting can be
// decided per field.
type CrossOrigin struct {
	Origins          []string `json:"origins" yaml:"origins" validate:"dive,required"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers" validate:"dive,required"`
	ExposedHeaders   []string `json:"exposed_headers" yaml:"exposed_headers" validate:"dive,required"`
	Methods          []string `json:"methods" yaml:"methods" validate:"dive,http_method"`
	MaxAge           int64    `json:"max_age" yaml:"max_age"`
	AllowCredentials string   `json:"allow_credentials" yaml:"allow_credentials" validate:"credentials_token"`
}

// NewCrossOrigin returns metadata with every attribute unset.
func NewCrossOrigin() *CrossOrigin {
	return &CrossOrigin{
		Origins:          []string{AnyOrigin},
		AllowedHeaders:   []string{AnyOrigin},
		ExposedHeaders:   []string{},
		Methods:          []string{},
		MaxAge:           UnsetMaxAge,
		AllowCredentials: UnsetCredentials,
	}
}

// Clone returns a deep copy.
func (c *CrossOrigin) Clone() *CrossOrigin {
	if c == nil {
		return nil
	}
	return &CrossOrigin{
		Origins:          cloneStrings(c.Origins),
		AllowedHeaders:   cloneStrings(c.AllowedHeaders),
		ExposedHeaders:   cloneStrings(c.ExposedHeaders),
		Methods:          cloneStrings(c.Methods),
		MaxAge:           c.MaxAge,
		AllowCredentials: c.AllowCredentials,
	}
}

// CrossOriginConfig is a CrossOrigin override stored in the database for one resource.
type CrossOriginConfig struct {
	Resource    string       `json:"resource"`
	CrossOrigin *CrossOrigin `json:"cross_origin"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
