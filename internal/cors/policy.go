package cors

import (
	"slices"
	"strings"

	"github.com/benvon/datarest/internal/models"
	"github.com/rs/cors"
)

// Policy is a fully resolved cross-origin policy. Treat it as immutable once
// built: the route table shares it between requests.
type Policy struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowedMethods   []string `json:"allowed_methods"`
	MaxAge           int      `json:"max_age"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// Equal compares two policies field by field.
func (p Policy) Equal(other Policy) bool {
	return slices.Equal(p.AllowedOrigins, other.AllowedOrigins) &&
		slices.Equal(p.AllowedHeaders, other.AllowedHeaders) &&
		slices.Equal(p.ExposedHeaders, other.ExposedHeaders) &&
		slices.Equal(p.AllowedMethods, other.AllowedMethods) &&
		p.MaxAge == other.MaxAge &&
		p.AllowCredentials == other.AllowCredentials
}

// AllowsAnyOrigin reports whether the origin list contains the wildcard.
func (p Policy) AllowsAnyOrigin() bool {
	return slices.Contains(p.AllowedOrigins, models.AnyOrigin)
}

// Combine layers other on top of p. List attributes are replaced when p is
// empty or a wildcard and merged otherwise; MaxAge and AllowCredentials are
// taken from other.
func (p Policy) Combine(other Policy) Policy {
	return Policy{
		AllowedOrigins:   combineList(p.AllowedOrigins, other.AllowedOrigins),
		AllowedHeaders:   combineList(p.AllowedHeaders, other.AllowedHeaders),
		ExposedHeaders:   combineList(p.ExposedHeaders, other.ExposedHeaders),
		AllowedMethods:   combineList(p.AllowedMethods, other.AllowedMethods),
		MaxAge:           other.MaxAge,
		AllowCredentials: other.AllowCredentials,
	}
}

func combineList(base, other []string) []string {
	if len(other) == 0 {
		return slices.Clone(base)
	}
	if len(base) == 0 || slices.Contains(base, models.AnyOrigin) || slices.Contains(other, models.AnyOrigin) {
		return slices.Clone(other)
	}
	out := slices.Clone(base)
	for _, v := range other {
		if !slices.ContainsFunc(out, func(s string) bool { return strings.EqualFold(s, v) }) {
			out = append(out, v)
		}
	}
	return out
}

// Options converts the policy into rs/cors options.
//
// A wildcard origin combined with credentials is served by echoing the
// request origin, since browsers refuse "Access-Control-Allow-Origin: *" on
// credentialed requests.
func (p Policy) Options() cors.Options {
	opts := cors.Options{
		AllowedOrigins:   slices.Clone(p.AllowedOrigins),
		AllowedHeaders:   slices.Clone(p.AllowedHeaders),
		ExposedHeaders:   slices.Clone(p.ExposedHeaders),
		AllowedMethods:   slices.Clone(p.AllowedMethods),
		AllowCredentials: p.AllowCredentials,
		MaxAge:           p.MaxAge,
	}
	if p.MaxAge == 0 {
		// rs/cors omits the header for 0; a negative value sends "0".
		opts.MaxAge = -1
	}
	if p.AllowCredentials && p.AllowsAnyOrigin() {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(string) bool { return true }
	}
	return opts
}

// Handler builds the rs/cors handler enforcing this policy.
func (p Policy) Handler(logger cors.Logger) *cors.Cors {
	opts := p.Options()
	if logger != nil {
		opts.Logger = logger
	}
	return cors.New(opts)
}
