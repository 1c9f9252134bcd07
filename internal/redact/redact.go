// Package redact provides utilities for redacting sensitive information from strings
// before they are logged or returned in error responses. Supplier credentials travel
// through form bodies, JSON payloads and Authorization headers, and any of those can
// end up inside a wrapped error message.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules are applied in order; earlier rules may consume text later rules would match.
var rules = []rule{
	// Connection strings with embedded user info
	{
		pattern:     regexp.MustCompile(`(?i)(postgres|postgresql|amqps?|mysql)://[^@\s/]+@`),
		replacement: RedactedCredentialPlaceholder,
	},
	// key=value, key: value and "key":"value" forms of credential fields
	{
		pattern: regexp.MustCompile(
			`(?i)("?(?:senha|password|passwd|pwd|client_secret|access_token|refresh_token)"?\s*[=:]\s*"?)[^"&\s,}]+`,
		),
		replacement: "${1}" + RedactionPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9_\-.~+/=]+`),
		replacement: "${1}" + RedactedTokenPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		replacement: RedactedJWTPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`),
		replacement: RedactedStackPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		replacement: RedactedEmailPlaceholder,
	},
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}

	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
