package config

import (
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/benvon/datarest/internal/models"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

const sampleRoutes = `
cors:
  mappings:
    - path: /api/**
      allowed_headers: [Content-Type]
resources:
  - name: people
    cross_origin: {}
  - name: orders
    path: purchase-orders
    capabilities:
      find_all: true
      find_one: true
    cross_origin:
      origins: ["${FRONTEND_URL}"]
      allowed_headers: [Content-type]
      exposed_headers: [Accept]
      methods: [patch]
      max_age: 1234
      allow_credentials: "true"
  - name: audit
    exported: false
`

func TestParseRoutes(t *testing.T) {
	t.Parallel()

	routes, err := ParseRoutes([]byte(sampleRoutes), lookupFrom(map[string]string{
		"FRONTEND_URL": "http://far.far.away, https://app.example",
	}))
	if err != nil {
		t.Fatalf("ParseRoutes() error: %v", err)
	}

	if len(routes.Resources) != 3 {
		t.Fatalf("len(Resources) = %d, want 3", len(routes.Resources))
	}

	people := routes.Resources[0]
	if !people.Exported || people.Capabilities != models.FullCapabilities() {
		t.Errorf("people should default to exported with full capabilities: %+v", people)
	}
	if people.CrossOrigin == nil {
		t.Fatal("people.CrossOrigin is nil, want unset attributes")
	}
	if people.CrossOrigin.MaxAge != models.UnsetMaxAge || people.CrossOrigin.AllowCredentials != models.UnsetCredentials {
		t.Errorf("people.CrossOrigin should keep unset sentinels: %+v", people.CrossOrigin)
	}

	orders := routes.Resources[1]
	if orders.RoutePath() != "purchase-orders" {
		t.Errorf("orders.RoutePath() = %q", orders.RoutePath())
	}
	if orders.Capabilities.Save || orders.Capabilities.Delete {
		t.Errorf("orders capabilities = %+v", orders.Capabilities)
	}
	co := orders.CrossOrigin
	if !slices.Equal(co.Origins, []string{"http://far.far.away", "https://app.example"}) {
		t.Errorf("orders origins = %v", co.Origins)
	}
	if !slices.Equal(co.Methods, []string{http.MethodPatch}) {
		t.Errorf("orders methods = %v", co.Methods)
	}
	if co.MaxAge != 1234 || co.AllowCredentials != "true" {
		t.Errorf("orders max age/credentials = %d/%q", co.MaxAge, co.AllowCredentials)
	}

	if routes.Resources[2].Exported {
		t.Error("audit should not be exported")
	}

	global, ok := routes.Global.Match("/api/people")
	if !ok {
		t.Fatal("global mapping should match /api/people")
	}
	if !slices.Equal(global.AllowedMethods, []string{http.MethodGet, http.MethodHead, http.MethodPost}) {
		t.Errorf("global AllowedMethods = %v", global.AllowedMethods)
	}
	if !slices.Equal(global.AllowedHeaders, []string{"Content-Type"}) {
		t.Errorf("global AllowedHeaders = %v", global.AllowedHeaders)
	}
}

func TestParseRoutes_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "unresolved placeholder",
			doc:     "resources:\n  - name: people\n    cross_origin:\n      origins: [\"${MISSING}\"]\n",
			wantErr: "unresolved placeholders: MISSING",
		},
		{
			name:    "bad credentials token",
			doc:     "resources:\n  - name: people\n    cross_origin:\n      allow_credentials: \"sometimes\"\n",
			wantErr: "AllowCredentials",
		},
		{
			name:    "unknown method",
			doc:     "resources:\n  - name: people\n    cross_origin:\n      methods: [FETCH]\n",
			wantErr: "unknown HTTP method",
		},
		{
			name:    "unknown field",
			doc:     "resources:\n  - name: people\n    colour: blue\n",
			wantErr: "parse routes file",
		},
		{
			name:    "missing name",
			doc:     "resources:\n  - path: people\n",
			wantErr: "Name",
		},
		{
			name:    "bad global pattern",
			doc:     "cors:\n  mappings:\n    - path: api/**\n",
			wantErr: "must start with /",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseRoutes([]byte(tt.doc), lookupFrom(nil))
			if err == nil {
				t.Fatalf("ParseRoutes() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseRoutes() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestPlaceholderResolver_Value(t *testing.T) {
	t.Parallel()

	env := map[string]string{"HOST": "app.example", "PORT": "8443"}
	tests := []struct {
		name        string
		in          string
		want        string
		wantMissing bool
	}{
		{name: "braced", in: "https://${HOST}", want: "https://app.example"},
		{name: "several", in: "https://${HOST}:${PORT}", want: "https://app.example:8443"},
		{name: "bare dollar name is literal", in: "X-Price-$USD", want: "X-Price-$USD"},
		{name: "lone dollar", in: "a$", want: "a$"},
		{name: "unterminated", in: "${HOST", want: "${HOST"},
		{name: "missing", in: "${NOPE}", want: "", wantMissing: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &placeholderResolver{lookup: lookupFrom(env)}
			if got := r.value(tt.in); got != tt.want {
				t.Errorf("value(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if gotErr := r.err() != nil; gotErr != tt.wantMissing {
				t.Errorf("value(%q) missing = %v, want %v", tt.in, gotErr, tt.wantMissing)
			}
		})
	}
}

func TestParseRoutes_Empty(t *testing.T) {
	t.Parallel()

	routes, err := ParseRoutes(nil, lookupFrom(nil))
	if err != nil {
		t.Fatalf("ParseRoutes(empty) error: %v", err)
	}
	if len(routes.Resources) != 0 || routes.Global.Len() != 0 {
		t.Errorf("ParseRoutes(empty) = %+v", routes)
	}
}

func TestLoadRoutes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(path, []byte("resources:\n  - name: people\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	routes, err := LoadRoutes(path)
	if err != nil {
		t.Fatalf("LoadRoutes() error: %v", err)
	}
	if len(routes.Resources) != 1 || routes.Resources[0].CrossOrigin != nil {
		t.Errorf("LoadRoutes() = %+v", routes.Resources)
	}

	if _, err := LoadRoutes(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadRoutes(missing) expected error")
	}
}
