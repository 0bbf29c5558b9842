package logger

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Sanitizer masks sensitive binding values so statements can be logged
// without leaking secrets. Bindings are named, so masking is decided per key.
type Sanitizer struct {
	maskValue string
	patterns  []*regexp.Regexp
}

// DefaultSensitiveFields are matched against binding names when no explicit
// list is given.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd", "pass",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// NewSanitizer creates a sanitizer for the given sensitive field names.
// If no fields are provided, DefaultSensitiveFields is used.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}

	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		// Binding keys look like "password", "u_password" or "password_2".
		pattern := regexp.MustCompile(`(?i)(^|_)` + regexp.QuoteMeta(field) + `($|_)`)
		patterns = append(patterns, pattern)
	}

	return &Sanitizer{
		maskValue: "***REDACTED***",
		patterns:  patterns,
	}
}

// IsSensitive reports whether a binding name looks like it carries a secret.
func (s *Sanitizer) IsSensitive(name string) bool {
	for _, pattern := range s.patterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// MaskParams returns a copy of params with sensitive values replaced.
// The original map is not modified.
func (s *Sanitizer) MaskParams(params map[string]interface{}) map[string]interface{} {
	if len(params) == 0 {
		return params
	}

	masked := make(map[string]interface{}, len(params))
	for k, v := range params {
		if s.IsSensitive(k) {
			masked[k] = s.maskValue
		} else {
			masked[k] = v
		}
	}
	return masked
}

// FormatParams renders params as "{a=1, b=x}" with keys sorted.
// Sensitive values should be masked using MaskParams before calling this.
func (s *Sanitizer) FormatParams(params map[string]interface{}) string {
	if len(params) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + s.formatValue(params[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value, truncating long strings.
func (s *Sanitizer) formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}

	var str string
	if b, ok := v.([]byte); ok {
		str = string(b)
	} else {
		str = fmt.Sprintf("%v", v)
	}

	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
