package instrumentation

import "strings"

// Cardinality management helpers for metrics.
//
// High cardinality in metrics causes increased memory usage in the
// metrics backend, slower queries and higher storage costs. Use these
// helpers when recording metrics derived from user identifiers.

// ExtractUserDomain extracts the domain part from an email address.
// This reduces cardinality by using the domain instead of the full email.
//
// Example:
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// Operation types for Gmail API metrics.
const (
	OperationSend       = "send"
	OperationGet        = "get"
	OperationList       = "list"
	OperationAttachment = "attachment"
)
