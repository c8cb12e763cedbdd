// Package logging redacts learner data and credentials before they reach the logs.
package logging

import (
	"regexp"
	"sort"
	"strings"
)

const (
	// MaxQueryLogLength is the maximum length of a synthesized statement in a log line.
	MaxQueryLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// user:pass@host
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)

	// A single-quoted SQL literal, with '' escapes.
	literalPattern = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// sensitiveKeys are payload fields that identify or describe a person.
var sensitiveKeys = map[string]bool{
	"learner_name": true,
	"learnerName":  true,
	"user_name":    true,
	"email":        true,
	"comment":      true,
	"feedback":     true,
	"password":     true,
	"api_key":      true,
	"token":        true,
}

// SanitizeConnectionString removes credentials from a connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError redacts credentials from an error message. Use it for every
// database, peer and completion-service error that is logged.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeQuery prepares a synthesized statement for logging: string literals are
// replaced by '?' since they may carry learner data, then the text is truncated.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sanitized := literalPattern.ReplaceAllString(query, "'?'")
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return TruncateString(sanitized, MaxQueryLogLength)
}

// RedactPayload returns a shallow copy of payload with person-describing values
// replaced. Nested objects are redacted too.
func RedactPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}

	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if sensitiveKeys[k] {
			out[k] = RedactedText
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = RedactPayload(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// PayloadKeys returns the sorted top-level keys of payload, for logs that must
// not carry values at all.
func PayloadKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return strings.ToValidUTF8(s[:maxLen], "") + "..."
}
