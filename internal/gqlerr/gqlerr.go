// Package gqlerr defines the error taxonomy surfaced by the graph layer.
// Resolver and store failures are classified into codes that end up in the
// extensions of the located GraphQL error; everything unclassified is an
// upstream failure.
package gqlerr

import (
	"errors"
	"fmt"
)

// Code identifies a failure class in GraphQL error extensions.
type Code string

const (
	CodeNotFound         Code = "NOT_FOUND"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeConfiguration    Code = "CONFIGURATION_ERROR"
	CodeUpstream         Code = "UPSTREAM_FAILURE"
)

// Error is a classified resolution failure.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// NotFound reports a referenced entity that does not resolve.
func NotFound(format string, a ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, a...)}
}

// PermissionDenied reports a failed permission check, naming the missing
// permission.
func PermissionDenied(permission string) *Error {
	return &Error{
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("permission denied: requires %q", permission),
	}
}

// Configuration reports missing or invalid server-side configuration, e.g.
// no default channel when one is required.
func Configuration(format string, a ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, a...)}
}

// Upstream wraps a failure of a backing service (persistence, discounts,
// inventory). The cause is preserved for errors.Is/As.
func Upstream(cause error, format string, a ...any) *Error {
	return &Error{Code: CodeUpstream, Message: fmt.Sprintf(format, a...), cause: cause}
}

// CodeOf classifies err. Unclassified non-nil errors report CodeUpstream.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUpstream
}
