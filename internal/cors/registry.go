package cors

import (
	"fmt"
	"path"
	"strings"
	"sync"
)

// Registry holds global policies keyed by URL path pattern. Patterns are
// matched in registration order.
//
// Supported patterns: an exact path, a path.Match glob ("/api/*"), or a
// prefix ending in "/**" that matches the prefix and everything below it.
type Registry struct {
	mu       sync.RWMutex
	mappings []registryMapping
}

type registryMapping struct {
	pattern string
	policy  Policy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers policy for pattern.
func (r *Registry) Add(pattern string, policy Policy) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("cors mapping pattern %q must start with /", pattern)
	}
	if _, err := path.Match(strings.TrimSuffix(pattern, "/**"), "/"); err != nil {
		return fmt.Errorf("invalid cors mapping pattern %q: %w", pattern, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings = append(r.mappings, registryMapping{pattern: pattern, policy: policy})
	return nil
}

// Match returns the first policy whose pattern matches urlPath.
func (r *Registry) Match(urlPath string) (Policy, bool) {
	_, p, ok := r.MatchPattern(urlPath)
	return p, ok
}

// MatchPattern is Match that also reports the matching pattern.
func (r *Registry) MatchPattern(urlPath string) (string, Policy, bool) {
	if r == nil {
		return "", Policy{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.mappings {
		if matchPattern(m.pattern, urlPath) {
			return m.pattern, m.policy, true
		}
	}
	return "", Policy{}, false
}

// Each calls fn for every mapping in match order.
func (r *Registry) Each(fn func(pattern string, policy Policy)) {
	if r == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.mappings {
		fn(m.pattern, m.policy)
	}
}

// Len returns the number of registered mappings.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mappings)
}

// Patterns returns the registered patterns in match order.
func (r *Registry) Patterns() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.mappings))
	for i, m := range r.mappings {
		out[i] = m.pattern
	}
	return out
}

func matchPattern(pattern, urlPath string) bool {
	prefix, ok := strings.CutSuffix(pattern, "/**")
	if !ok {
		matched, _ := path.Match(pattern, urlPath)
		return matched
	}
	prefixParts := strings.Split(prefix, "/")
	pathParts := strings.Split(urlPath, "/")
	if len(pathParts) < len(prefixParts) {
		return false
	}
	for i, part := range prefixParts {
		if matched, _ := path.Match(part, pathParts[i]); !matched {
			return false
		}
	}
	return true
}
