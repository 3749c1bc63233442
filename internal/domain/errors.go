package domain

import (
	"errors"
	"fmt"
)

// Stable machine-readable error codes. All domain failures are recoverable,
// request-scoped, and must reach the boundary layer unswallowed.
const (
	CodeNotFound           = "not_found"
	CodeInvariantViolation = "invariant_violation"
	CodeRouteConflict      = "route_conflict"
	CodeDomainError        = "domain_error"
)

// Error is the domain failure type: a stable code, a human-readable message,
// and optional diagnostic details (e.g. the conflicting route codes).
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string { return e.Message }

// NotFound reports a missing load, group or shift.
func NotFound(kind, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", kind, id),
		Details: map[string]any{"id": id},
	}
}

// InvariantViolation reports a broken structural or quantity rule.
func InvariantViolation(format string, args ...any) *Error {
	return &Error{Code: CodeInvariantViolation, Message: fmt.Sprintf(format, args...)}
}

// RouteConflict reports a concurrency pre-check rejection.
func RouteConflict(message string, details map[string]any) *Error {
	return &Error{Code: CodeRouteConflict, Message: message, Details: details}
}

// Errorf builds a catch-all domain error: bad enum value, disallowed mutation
// on a terminal state, non-positive delta, format/operation mismatch.
func Errorf(format string, args ...any) *Error {
	return &Error{Code: CodeDomainError, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the domain error code, or "" for non-domain errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
