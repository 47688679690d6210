// Package sql holds helpers for building safe, parameterized list queries.
package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a user-supplied value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Field       string // Name of the input that failed the check
	Value       string // The value that was checked
}

// CheckForInjection uses libinjection to detect SQL injection patterns in value.
// Values are always bound as parameters; this check exists to reject and audit
// obvious injection attempts rather than to make queries safe.
//
// Returns nil if no injection is detected.
//
// Example:
//
//	result := CheckForInjection("search", "Shopping Center")
//	// result == nil
//
//	result := CheckForInjection("search", "'; DROP TABLE slots--")
//	// result.IsSQLi == true
func CheckForInjection(field, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Field:       field,
		Value:       value,
	}
}
