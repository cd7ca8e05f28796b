package mapping

import (
	"net/http"

	"github.com/benvon/datarest/internal/cors"
	rscors "github.com/rs/cors"
	"go.uber.org/zap"
)

// Route is one resource's entry in the route table.
type Route struct {
	Path             string
	Resource         string
	SupportedMethods []string
	Policy           cors.Policy
	HasPolicy        bool

	handler *rscors.Cors
}

// Table is an immutable route table with per-route cross-origin handlers.
// Policies are resolved once, when the table is built.
type Table struct {
	mappings *Mappings
	global   *cors.Registry
	routes   map[string]*Route
	fallback map[string]*rscors.Cors
	log      *zap.Logger
}

// Build resolves the cross-origin policy of every exported resource and
// caches an rs/cors handler per route. global may be nil.
func Build(mappings *Mappings, global *cors.Registry, log *zap.Logger) *Table {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Table{
		mappings: mappings,
		global:   global,
		routes:   make(map[string]*Route),
		fallback: make(map[string]*rscors.Cors),
		log:      log,
	}
	corsLog := zap.NewStdLog(log.Named("cors"))
	for _, res := range mappings.Resources() {
		routePath := res.RoutePath()
		r := &Route{
			Path:             routePath,
			Resource:         res.Name,
			SupportedMethods: SupportedMethods(res.Capabilities),
		}
		resourcePolicy, hasResourcePolicy := cors.Lookup(res, r.SupportedMethods)
		globalPolicy, hasGlobalPolicy := global.Match(mappings.BasePath() + "/" + routePath)
		switch {
		case hasResourcePolicy && hasGlobalPolicy:
			r.Policy, r.HasPolicy = globalPolicy.Combine(resourcePolicy), true
		case hasResourcePolicy:
			r.Policy, r.HasPolicy = resourcePolicy, true
		case hasGlobalPolicy:
			r.Policy, r.HasPolicy = globalPolicy, true
		}
		if r.HasPolicy {
			r.handler = r.Policy.Handler(corsLog)
		}
		t.routes[routePath] = r
		log.Debug("route_mapped",
			zap.String("resource", res.Name),
			zap.String("path", routePath),
			zap.Strings("supported_methods", r.SupportedMethods),
			zap.Bool("cors", r.HasPolicy),
		)
	}
	global.Each(func(pattern string, p cors.Policy) {
		t.fallback[pattern] = p.Handler(corsLog)
	})
	log.Info("route_table_built",
		zap.Int("routes", len(t.routes)),
		zap.Int("global_cors_mappings", global.Len()),
	)
	return t
}

// Mappings returns the resource mappings the table was built from.
func (t *Table) Mappings() *Mappings { return t.mappings }

// Routes returns the routes sorted by path.
func (t *Table) Routes() []*Route {
	out := make([]*Route, 0, len(t.routes))
	for _, res := range t.mappings.Resources() {
		if r, ok := t.routes[res.RoutePath()]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Route returns the route owning urlPath.
func (t *Table) Route(urlPath string) (*Route, bool) {
	segment, ok := t.mappings.Segment(urlPath)
	if !ok {
		return nil, false
	}
	r, ok := t.routes[segment]
	return r, ok
}

// PolicyFor returns the cross-origin policy applying to urlPath: the route's
// cached policy, or the global policy for paths no resource owns.
func (t *Table) PolicyFor(urlPath string) (cors.Policy, bool) {
	if r, ok := t.Route(urlPath); ok {
		return r.Policy, r.HasPolicy
	}
	return t.global.Match(urlPath)
}

// handlerFor returns the cached rs/cors handler for urlPath, or nil.
func (t *Table) handlerFor(urlPath string) *rscors.Cors {
	if r, ok := t.Route(urlPath); ok {
		return r.handler
	}
	if pattern, _, ok := t.global.MatchPattern(urlPath); ok {
		return t.fallback[pattern]
	}
	return nil
}

// ServeHTTP applies the route's cross-origin handling before next. Requests
// for paths without a policy pass through untouched.
func (t *Table) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.Handler) {
	h := t.handlerFor(r.URL.Path)
	if h == nil {
		next.ServeHTTP(w, r)
		return
	}
	h.ServeHTTP(w, r, next.ServeHTTP)
}
