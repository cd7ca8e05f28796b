package validation

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/benvon/datarest/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	resourcePathPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

func init() {
	Validate = validator.New()

	// These should never fail in normal operation
	if err := Validate.RegisterValidation("credentials_token", validateCredentialsToken); err != nil {
		panic(fmt.Sprintf("failed to register credentials_token validator: %v", err))
	}
	if err := Validate.RegisterValidation("http_method", validateHTTPMethod); err != nil {
		panic(fmt.Sprintf("failed to register http_method validator: %v", err))
	}
	if err := Validate.RegisterValidation("resource_path", validateResourcePath); err != nil {
		panic(fmt.Sprintf("failed to register resource_path validator: %v", err))
	}
}

// validateCredentialsToken accepts "true", "false" or the empty (unset) token, ignoring case
func validateCredentialsToken(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "true", "false", models.UnsetCredentials:
		return true
	default:
		return false
	}
}

func validateHTTPMethod(fl validator.FieldLevel) bool {
	return IsHTTPMethod(fl.Field().String())
}

func validateResourcePath(fl validator.FieldLevel) bool {
	return resourcePathPattern.MatchString(fl.Field().String())
}

// IsHTTPMethod reports whether method is a request method a route can expose.
func IsHTTPMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// ValidateCrossOrigin checks cross-origin metadata before it is attached to a route.
func ValidateCrossOrigin(c *models.CrossOrigin) error {
	if c == nil {
		return nil
	}
	if err := Validate.Struct(c); err != nil {
		return describe(err)
	}
	return nil
}

// ValidateResource checks a resource descriptor including its cross-origin metadata.
func ValidateResource(r *models.Resource) error {
	if r == nil {
		return errors.New("resource is nil")
	}
	if err := Validate.Struct(r); err != nil {
		return fmt.Errorf("resource %q: %w", r.Name, describe(err))
	}
	return nil
}

// describe turns validator errors into a single readable error
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "credentials_token":
			msgs = append(msgs, fmt.Sprintf("%s must be \"true\", \"false\" or empty, got %q", fe.Field(), fe.Value()))
		case "http_method":
			msgs = append(msgs, fmt.Sprintf("%s contains unknown HTTP method %q", fe.Namespace(), fe.Value()))
		case "resource_path":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a valid path segment", fe.Field(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
