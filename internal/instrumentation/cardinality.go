package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics
// explosion in the backend.

// ExtractUserDomain extracts the domain part from a user id (an email
// address). Using the domain instead of the full address keeps label
// cardinality bounded by the number of tenants, not the number of users.
//
// Example:
//
//	ExtractUserDomain("jane@contoso.com")  // "contoso.com"
//	ExtractUserDomain("invalid")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(userID string) string {
	if userID == "" {
		return "unknown"
	}

	parts := strings.Split(userID, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// Common operation types for Graph API metrics.
// Status, result, and domain constants are defined in config.go.
const (
	OperationList   = "list"
	OperationGet    = "get"
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationSend   = "send"
	OperationMove   = "move"
	OperationSearch = "search"
)
