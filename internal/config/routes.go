package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/benvon/datarest/internal/cors"
	"github.com/benvon/datarest/internal/models"
	"github.com/benvon/datarest/internal/validation"
	"gopkg.in/yaml.v3"
)

// globalDefaultMethods are the methods a global CORS mapping allows when it
// does not list any.
var globalDefaultMethods = []string{http.MethodGet, http.MethodHead, http.MethodPost}

// Routes is the parsed routes file: exported resources plus global CORS mappings.
type Routes struct {
	Resources []*models.Resource
	Global    *cors.Registry
}

type routesFile struct {
	CORS struct {
		Mappings []corsMappingEntry `yaml:"mappings"`
	} `yaml:"cors"`
	Resources []resourceEntry `yaml:"resources"`
}

type corsMappingEntry struct {
	Path             string `yaml:"path"`
	crossOriginEntry `yaml:",inline"`
}

type resourceEntry struct {
	Name         string               `yaml:"name"`
	Path         string               `yaml:"path"`
	Exported     *bool                `yaml:"exported"`
	Capabilities *models.Capabilities `yaml:"capabilities"`
	CrossOrigin  *crossOriginEntry    `yaml:"cross_origin"`
}

// crossOriginEntry keeps track of which attributes the file sets so that
// absent ones keep their unset sentinel.
type crossOriginEntry struct {
	Origins          []string `yaml:"origins"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	ExposedHeaders   []string `yaml:"exposed_headers"`
	Methods          []string `yaml:"methods"`
	MaxAge           *int64   `yaml:"max_age"`
	AllowCredentials *string  `yaml:"allow_credentials"`
}

// LoadRoutes reads and validates the routes file at path. ${VAR}
// placeholders in cross-origin attributes are resolved from the environment.
func LoadRoutes(path string) (*Routes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	return ParseRoutes(data, os.LookupEnv)
}

// ParseRoutes parses a routes document, resolving placeholders with lookup.
func ParseRoutes(data []byte, lookup func(string) (string, bool)) (*Routes, error) {
	var file routesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse routes file: %w", err)
	}

	routes := &Routes{Global: cors.NewRegistry()}
	for _, m := range file.CORS.Mappings {
		meta, err := m.crossOriginEntry.toModel(lookup)
		if err != nil {
			return nil, fmt.Errorf("cors mapping %q: %w", m.Path, err)
		}
		policy := cors.ResolvePolicy(&models.Resource{CrossOrigin: meta}, globalDefaultMethods)
		if err := routes.Global.Add(m.Path, policy); err != nil {
			return nil, err
		}
	}

	for _, entry := range file.Resources {
		res := &models.Resource{
			Name:         strings.TrimSpace(entry.Name),
			Path:         strings.TrimSpace(entry.Path),
			Exported:     true,
			Capabilities: models.FullCapabilities(),
		}
		if entry.Exported != nil {
			res.Exported = *entry.Exported
		}
		if entry.Capabilities != nil {
			res.Capabilities = *entry.Capabilities
		}
		if entry.CrossOrigin != nil {
			meta, err := entry.CrossOrigin.toModel(lookup)
			if err != nil {
				return nil, fmt.Errorf("resource %q: %w", res.Name, err)
			}
			res.CrossOrigin = meta
		}
		if err := validation.ValidateResource(res); err != nil {
			return nil, err
		}
		routes.Resources = append(routes.Resources, res)
	}
	return routes, nil
}

func (e *crossOriginEntry) toModel(lookup func(string) (string, bool)) (*models.CrossOrigin, error) {
	meta := models.NewCrossOrigin()
	r := &placeholderResolver{lookup: lookup}
	if e.Origins != nil {
		meta.Origins = r.list(e.Origins)
	}
	if e.AllowedHeaders != nil {
		meta.AllowedHeaders = r.list(e.AllowedHeaders)
	}
	if e.ExposedHeaders != nil {
		meta.ExposedHeaders = r.list(e.ExposedHeaders)
	}
	if e.Methods != nil {
		meta.Methods = r.list(e.Methods)
		for i, m := range meta.Methods {
			meta.Methods[i] = strings.ToUpper(m)
		}
	}
	if e.MaxAge != nil {
		meta.MaxAge = *e.MaxAge
	}
	if e.AllowCredentials != nil {
		meta.AllowCredentials = strings.TrimSpace(r.value(*e.AllowCredentials))
	}
	if err := r.err(); err != nil {
		return nil, err
	}
	if err := validation.ValidateCrossOrigin(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// placeholderResolver expands ${VAR} references and remembers unresolved ones.
type placeholderResolver struct {
	lookup  func(string) (string, bool)
	missing map[string]bool
}

// placeholderPattern matches ${VAR}. A bare $ is literal.
var placeholderPattern = regexp.MustCompile(`\$\{([^{}]*)\}`)

func (r *placeholderResolver) value(s string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.TrimSpace(m[2 : len(m)-1])
		v, ok := r.lookup(name)
		if !ok {
			if r.missing == nil {
				r.missing = make(map[string]bool)
			}
			r.missing[name] = true
		}
		return v
	})
}

// list expands every entry. A single entry may hold a comma-separated list,
// which lets one variable carry several origins.
func (r *placeholderResolver) list(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(r.value(v), ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func (r *placeholderResolver) err() error {
	if len(r.missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.missing))
	for name := range r.missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return errors.New("unresolved placeholders: " + strings.Join(names, ", "))
}
