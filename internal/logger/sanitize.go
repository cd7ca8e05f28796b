package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum length for URL paths in logs
	MaxPathLength = 500
	// MaxHeaderLength is the maximum length for request header values (Origin, Access-Control-Request-*) in logs
	MaxHeaderLength = 256
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
)

// SanitizePath sanitizes a URL path for safe logging
// Removes control characters, truncates to MaxPathLength, and validates UTF-8
func SanitizePath(path string) string {
	return truncate(filterRunes(path, true), MaxPathLength)
}

// SanitizeString sanitizes a general string for safe logging
// Removes control characters, truncates to maxLength, and validates UTF-8
func SanitizeString(s string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	return truncate(filterRunes(s, true), maxLength)
}

// SanitizeHeader sanitizes a client supplied header value. Unlike SanitizeString
// it also drops tabs and line breaks, which never appear in a valid header.
func SanitizeHeader(value string) string {
	return truncate(filterRunes(value, false), MaxHeaderLength)
}

// SanitizeError sanitizes an error message for safe logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// filterRunes validates UTF-8 and removes control characters. Space is always
// kept; tab, newline and CR only when keepWhitespace is set.
func filterRunes(s string, keepWhitespace bool) string {
	if s == "" {
		return ""
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsPrint(r) || r == ' ':
			builder.WriteRune(r)
		case keepWhitespace && (r == '\t' || r == '\n' || r == '\r'):
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

func truncate(s string, maxLength int) string {
	if len(s) > maxLength {
		return s[:maxLength] + "..."
	}
	return s
}
