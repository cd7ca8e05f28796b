package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/benvon/datarest/internal/models"
	"github.com/benvon/datarest/internal/validation"
)

// Mappings indexes exported resources by the path segment they are served under.
// It is built once and read concurrently afterwards.
type Mappings struct {
	basePath string
	byPath   map[string]*models.Resource
	ordered  []*models.Resource
}

// NewMappings validates resources and indexes the exported ones. Resources
// are copied so later changes by the caller do not leak into the table.
func NewMappings(basePath string, resources []*models.Resource) (*Mappings, error) {
	m := &Mappings{
		basePath: NormalizeBasePath(basePath),
		byPath:   make(map[string]*models.Resource),
	}
	for _, res := range resources {
		if err := validation.ValidateResource(res); err != nil {
			return nil, err
		}
		if !res.Exported {
			continue
		}
		p := res.RoutePath()
		if _, dup := m.byPath[p]; dup {
			return nil, fmt.Errorf("resource %q: path %q is already mapped", res.Name, p)
		}
		cp := *res
		cp.CrossOrigin = res.CrossOrigin.Clone()
		m.byPath[p] = &cp
		m.ordered = append(m.ordered, &cp)
	}
	sort.Slice(m.ordered, func(i, j int) bool { return m.ordered[i].RoutePath() < m.ordered[j].RoutePath() })
	return m, nil
}

// BasePath returns the normalized base path, e.g. "/api".
func (m *Mappings) BasePath() string { return m.basePath }

// Resources returns exported resources sorted by path.
func (m *Mappings) Resources() []*models.Resource {
	out := make([]*models.Resource, len(m.ordered))
	copy(out, m.ordered)
	return out
}

// ByPath returns the resource served under segment.
func (m *Mappings) ByPath(segment string) (*models.Resource, bool) {
	res, ok := m.byPath[segment]
	return res, ok
}

// Find resolves the resource owning urlPath, e.g. "/api/people/42" → people.
func (m *Mappings) Find(urlPath string) (*models.Resource, bool) {
	segment, ok := m.Segment(urlPath)
	if !ok {
		return nil, false
	}
	return m.ByPath(segment)
}

// Segment returns the first path segment below the base path.
func (m *Mappings) Segment(urlPath string) (string, bool) {
	rest := urlPath
	if m.basePath != "" {
		var ok bool
		rest, ok = strings.CutPrefix(urlPath, m.basePath)
		if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
			return "", false
		}
	}
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return "", false
	}
	segment, _, _ := strings.Cut(rest, "/")
	return segment, true
}

// NormalizeBasePath returns base with a leading slash and no trailing slash.
// The root path normalizes to "".
func NormalizeBasePath(base string) string {
	base = strings.Trim(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return "/" + base
}
