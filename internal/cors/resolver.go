// Package cors derives per-route cross-origin policies from resource metadata
// and turns them into rs/cors handlers.
package cors

import (
	"strings"

	"github.com/benvon/datarest/internal/models"
)

// DefaultMaxAge is the preflight cache duration, in seconds, used when the
// metadata leaves MaxAge unset.
const DefaultMaxAge = 1800

// DefaultAllowCredentials applies when the credentials token is unset.
// Browsers reject credentialed responses for "*" origins, so wildcard
// policies reflect the request origin instead (see Policy.Options).
const DefaultAllowCredentials = true

// RouteOwner is anything that causes routes to be created and may carry
// cross-origin metadata, typically a *models.Resource.
type RouteOwner interface {
	CrossOriginMetadata() *models.CrossOrigin
}

// HasPolicy reports whether owner carries cross-origin metadata.
func HasPolicy(owner RouteOwner) bool {
	return owner != nil && owner.CrossOriginMetadata() != nil
}

// ResolvePolicy materializes the policy for owner. Each attribute left at its
// unset sentinel is replaced by its default; explicit values are kept verbatim.
// supportedMethods is only used when the metadata does not list methods.
//
// Callers must check HasPolicy first; an owner without metadata yields the
// zero Policy.
func ResolvePolicy(owner RouteOwner, supportedMethods []string) Policy {
	if !HasPolicy(owner) {
		return Policy{}
	}
	meta := owner.CrossOriginMetadata()

	p := Policy{
		AllowedOrigins:   orDefault(meta.Origins, models.AnyOrigin),
		AllowedHeaders:   orDefault(meta.AllowedHeaders, models.AnyOrigin),
		ExposedHeaders:   orDefault(meta.ExposedHeaders),
		AllowedMethods:   orDefault(meta.Methods, supportedMethods...),
		MaxAge:           DefaultMaxAge,
		AllowCredentials: DefaultAllowCredentials,
	}
	if meta.MaxAge >= 0 {
		p.MaxAge = int(meta.MaxAge)
	}
	if meta.AllowCredentials != models.UnsetCredentials {
		p.AllowCredentials = strings.EqualFold(meta.AllowCredentials, "true")
	}
	return p
}

// Lookup combines HasPolicy and ResolvePolicy.
func Lookup(owner RouteOwner, supportedMethods []string) (Policy, bool) {
	if !HasPolicy(owner) {
		return Policy{}, false
	}
	return ResolvePolicy(owner, supportedMethods), true
}

// orDefault copies values, or defaults when values is empty. The result is
// never nil so an empty list stays distinguishable from an absent policy.
func orDefault(values []string, defaults ...string) []string {
	src := values
	if len(src) == 0 {
		src = defaults
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
