package validation

import (
	"strings"
	"testing"

	"github.com/benvon/datarest/internal/models"
)

func TestValidateCrossOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*models.CrossOrigin)
		wantErr string
	}{
		{"unset attributes", func(*models.CrossOrigin) {}, ""},
		{"credentials true", func(c *models.CrossOrigin) { c.AllowCredentials = "true" }, ""},
		{"credentials mixed case", func(c *models.CrossOrigin) { c.AllowCredentials = "FALSE" }, ""},
		{"credentials garbage", func(c *models.CrossOrigin) { c.AllowCredentials = "yes" }, "must be \"true\", \"false\" or empty"},
		{"known methods", func(c *models.CrossOrigin) { c.Methods = []string{"GET", "patch"} }, ""},
		{"unknown method", func(c *models.CrossOrigin) { c.Methods = []string{"FETCH"} }, "unknown HTTP method"},
		{"blank origin", func(c *models.CrossOrigin) { c.Origins = []string{""} }, "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := models.NewCrossOrigin()
			tt.mutate(c)
			err := ValidateCrossOrigin(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateCrossOrigin() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateCrossOrigin() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateCrossOrigin() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateCrossOrigin_Nil(t *testing.T) {
	t.Parallel()
	if err := ValidateCrossOrigin(nil); err != nil {
		t.Errorf("ValidateCrossOrigin(nil) = %v, want nil", err)
	}
}

func TestValidateResource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		res     *models.Resource
		wantErr bool
	}{
		{"minimal", &models.Resource{Name: "people"}, false},
		{"custom path", &models.Resource{Name: "people", Path: "persons"}, false},
		{"missing name", &models.Resource{Path: "persons"}, true},
		{"bad path", &models.Resource{Name: "people", Path: "Pe/ople"}, true},
		{"bad cross origin", &models.Resource{Name: "people", CrossOrigin: &models.CrossOrigin{MaxAge: -1, AllowCredentials: "maybe"}}, true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateResource(tt.res)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateResource() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
