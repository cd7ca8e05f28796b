package database

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/benvon/datarest/internal/models"
	"github.com/lib/pq"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int64:
			*p = r.values[i].(int64)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *pq.StringArray:
			if v := r.values[i]; v != nil {
				*p = pq.StringArray(v.([]string))
			}
		}
	}
	return nil
}

func TestScanCrossOrigin(t *testing.T) {
	t.Parallel()

	now := time.Now()
	row := fakeRow{values: []any{"people", nil, []string{"Content-Type"}, nil, []string{"PATCH"}, int64(-1), "", now, now}}

	c, err := scanCrossOrigin(row)
	if err != nil {
		t.Fatalf("scanCrossOrigin() error: %v", err)
	}
	if c.Resource != "people" {
		t.Errorf("Resource = %q", c.Resource)
	}
	meta := c.CrossOrigin
	if !slices.Equal(meta.Origins, []string{models.AnyOrigin}) {
		t.Errorf("NULL origins should stay unset, got %v", meta.Origins)
	}
	if !slices.Equal(meta.AllowedHeaders, []string{"Content-Type"}) {
		t.Errorf("AllowedHeaders = %v", meta.AllowedHeaders)
	}
	if len(meta.ExposedHeaders) != 0 {
		t.Errorf("ExposedHeaders = %v, want empty", meta.ExposedHeaders)
	}
	if !slices.Equal(meta.Methods, []string{"PATCH"}) {
		t.Errorf("Methods = %v", meta.Methods)
	}
	if meta.MaxAge != models.UnsetMaxAge || meta.AllowCredentials != models.UnsetCredentials {
		t.Errorf("MaxAge/AllowCredentials = %d/%q, want unset", meta.MaxAge, meta.AllowCredentials)
	}
}

func TestScanCrossOrigin_Error(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	if _, err := scanCrossOrigin(fakeRow{err: want}); !errors.Is(err, want) {
		t.Errorf("scanCrossOrigin() error = %v, want %v", err, want)
	}
}

func TestNullableArray(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		values   []string
		sentinel []string
		wantNull bool
	}{
		{"nil", nil, nil, true},
		{"empty", []string{}, nil, true},
		{"sentinel", []string{"*"}, []string{"*"}, true},
		{"explicit", []string{"https://a.example"}, []string{"*"}, false},
		{"explicit without sentinel", []string{"Accept"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := nullableArray(tt.values, tt.sentinel...)
			if (got == nil) != tt.wantNull {
				t.Errorf("nullableArray(%v) = %v, wantNull %v", tt.values, got, tt.wantNull)
			}
		})
	}
}

func TestScopeKey(t *testing.T) {
	t.Parallel()

	if got := scopeKey(""); got != DefaultRatelimitScope {
		t.Errorf("scopeKey(\"\") = %q", got)
	}
	if got := scopeKey(" people "); got != "people" {
		t.Errorf("scopeKey(\" people \") = %q", got)
	}
}
