// Package sanitize validates free-text user input before it enters the
// message pipeline. It is a regex denylist filter, not a grammar-based HTML
// sanitizer; inputs matching a dangerous pattern are rejected outright rather
// than cleaned.
package sanitize

import (
	"html"
	"log/slog"
	"regexp"
	"strings"
)

// suspiciousPatterns match markup that has no business in a chat message:
// script-ish tags, inline event handlers, javascript: URIs.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script\b.*?</script>`),
	regexp.MustCompile(`(?is)<iframe\b.*?</iframe>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`(?is)<object\b.*?</object>`),
	regexp.MustCompile(`(?i)<embed\b[^>]*>`),
}

// dangerousSchemes are URI schemes rejected anywhere in the input.
var dangerousSchemes = []string{
	"javascript:",
	"data:",
	"vbscript:",
	"file:",
}

var htmlTags = regexp.MustCompile(`<[^>]*>`)

// ContainsSuspiciousPatterns reports whether the input matches any denylisted
// markup pattern.
func ContainsSuspiciousPatterns(input string) bool {
	for _, re := range suspiciousPatterns {
		if re.MatchString(input) {
			return true
		}
	}
	return false
}

// ContainsDangerousScheme reports whether the input contains a denylisted URI
// scheme, case-insensitively.
func ContainsDangerousScheme(input string) bool {
	lower := strings.ToLower(input)
	for _, scheme := range dangerousSchemes {
		if strings.Contains(lower, scheme) {
			return true
		}
	}
	return false
}

// StripTags removes all markup tags from the input.
func StripTags(input string) string {
	return htmlTags.ReplaceAllString(input, "")
}

// Clean strips markup tags, escapes the remaining special characters, and
// trims surrounding whitespace. It does not reject anything; callers wanting
// validation use ValidateAndSanitize.
func Clean(input string) string {
	return strings.TrimSpace(html.EscapeString(StripTags(input)))
}

// ValidateAndSanitize checks the raw input against the denylist and, if it
// passes, returns the cleaned text. The second return value is false when the
// input is rejected: empty, matching a dangerous pattern or scheme, or empty
// after cleaning.
func ValidateAndSanitize(raw string, log *slog.Logger) (string, bool) {
	if raw == "" {
		return "", false
	}

	if ContainsSuspiciousPatterns(raw) {
		if log != nil {
			log.Warn("Suspicious pattern detected in message")
		}
		return "", false
	}

	if ContainsDangerousScheme(raw) {
		if log != nil {
			log.Warn("Dangerous URI scheme detected in message")
		}
		return "", false
	}

	cleaned := Clean(raw)
	if cleaned == "" {
		return "", false
	}

	return cleaned, true
}
