package oxidb

import (
	"fmt"
	"strings"
)

// Error is returned when the OxiDB server returns an error response.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("oxidb: %s", e.Msg)
}

// NotFound reports whether the server refused because a bucket, object or
// collection does not exist.
func (e *Error) NotFound() bool {
	msg := strings.ToLower(e.Msg)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// AlreadyExists reports whether the server refused a create for an existing
// bucket, collection or index.
func (e *Error) AlreadyExists() bool {
	return strings.Contains(strings.ToLower(e.Msg), "exists")
}

// TransactionConflictError is returned on OCC version conflict during commit.
type TransactionConflictError struct {
	Msg string
}

func (e *TransactionConflictError) Error() string {
	return fmt.Sprintf("oxidb: transaction conflict: %s", e.Msg)
}
