package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxQueryLogLength is the maximum length of query text written to a log line.
	MaxQueryLogLength = 160
	// RedactedText replaces sensitive data.
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host in connection URIs
	connStringPattern = regexp.MustCompile(`://[^:/@\s]+:[^@\s]+@`)

	// Quoted string literals in query text
	literalPattern = regexp.MustCompile(`'(?:[^']|'')*'`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// sensitiveColumns never have their bound values logged.
var sensitiveColumns = []string{"password", "reset_token", "token", "secret"}

// SanitizeConnectionString removes credentials from connection strings and URIs.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
}

// SanitizeError sanitizes error messages that might contain credentials.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeConnectionString(err.Error())
}

// SanitizeQuery collapses whitespace, masks string literals and truncates
// query text for diagnostics.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	sanitized := strings.TrimSpace(whitespacePattern.ReplaceAllString(query, " "))
	sanitized = literalPattern.ReplaceAllString(sanitized, "'?'")
	return TruncateString(sanitized, MaxQueryLogLength)
}

// IsSensitiveColumn reports whether values bound to column must be redacted.
func IsSensitiveColumn(column string) bool {
	lower := strings.ToLower(column)
	for _, s := range sensitiveColumns {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// SanitizeParams returns a copy of params safe to log. columns names the
// column each position binds to (shorter than params is fine); values bound
// to sensitive columns are redacted and long strings are truncated.
func SanitizeParams(params []any, columns []string) []any {
	out := make([]any, len(params))
	for i, p := range params {
		if i < len(columns) && IsSensitiveColumn(columns[i]) {
			out[i] = RedactedText
			continue
		}
		if s, ok := p.(string); ok {
			out[i] = TruncateString(s, 64)
			continue
		}
		out[i] = p
	}
	return out
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
