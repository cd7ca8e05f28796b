package handlers

import (
	"net/http"

	"github.com/benvon/datarest/internal/cors"
	"github.com/benvon/datarest/internal/mapping"
)

// CORSInspector reports the cross-origin policies of the current route table.
type CORSInspector struct {
	holder *mapping.Holder
}

// NewCORSInspector creates an inspector over holder.
func NewCORSInspector(holder *mapping.Holder) *CORSInspector {
	return &CORSInspector{holder: holder}
}

// RoutePolicy is one route in the inspector output. Policy is nil for routes
// without cross-origin handling.
type RoutePolicy struct {
	Resource         string       `json:"resource"`
	Path             string       `json:"path"`
	SupportedMethods []string     `json:"supported_methods"`
	Policy           *cors.Policy `json:"policy"`
}

// ListRoutes handles GET /cors/routes. ?path=/api/people narrows the output
// to the policy applying to one URL path.
func (c *CORSInspector) ListRoutes(w http.ResponseWriter, r *http.Request) {
	table := c.holder.Load()
	if table == nil {
		respondError(w, http.StatusServiceUnavailable, "Route table not built yet")
		return
	}

	if p := r.URL.Query().Get("path"); p != "" {
		policy, ok := table.PolicyFor(p)
		if !ok {
			respondError(w, http.StatusNotFound, "No cross-origin policy applies to path")
			return
		}
		respondJSON(w, http.StatusOK, policy)
		return
	}

	routes := make([]RoutePolicy, 0)
	for _, route := range table.Routes() {
		rp := RoutePolicy{
			Resource:         route.Resource,
			Path:             table.Mappings().BasePath() + "/" + route.Path,
			SupportedMethods: route.SupportedMethods,
		}
		if route.HasPolicy {
			p := route.Policy
			rp.Policy = &p
		}
		routes = append(routes, rp)
	}
	respondJSON(w, http.StatusOK, routes)
}
