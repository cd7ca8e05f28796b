package logger

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "/api/people/1", "/api/people/1"},
		{"control characters", "/api/\x00people\x1b", "/api/people"},
		{"invalid utf8", "/api/\xffpeople", "/api/people"},
		{"truncated", "/" + strings.Repeat("a", MaxPathLength+10), "/" + strings.Repeat("a", MaxPathLength-1) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizePath(tt.in); got != tt.want {
				t.Errorf("SanitizePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeHeader(t *testing.T) {
	t.Parallel()

	got := SanitizeHeader("https://evil.example\r\nX-Injected: 1")
	if strings.ContainsAny(got, "\r\n") {
		t.Errorf("SanitizeHeader() kept line breaks: %q", got)
	}
	if got != "https://evil.exampleX-Injected: 1" {
		t.Errorf("SanitizeHeader() = %q", got)
	}
	if long := SanitizeHeader(strings.Repeat("o", MaxHeaderLength*2)); len(long) != MaxHeaderLength+3 {
		t.Errorf("SanitizeHeader() length = %d, want %d", len(long), MaxHeaderLength+3)
	}
}

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	if got := SanitizeString("line1\nline2", 0); got != "line1\nline2" {
		t.Errorf("SanitizeString() = %q, want whitespace kept", got)
	}
	if got := SanitizeString("abcdef", 3); got != "abc..." {
		t.Errorf("SanitizeString() = %q, want abc...", got)
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if got := SanitizeError(nil); got != "" {
		t.Errorf("SanitizeError(nil) = %q", got)
	}
	if got := SanitizeError(errors.New("boom\x00")); got != "boom" {
		t.Errorf("SanitizeError() = %q, want boom", got)
	}
}
