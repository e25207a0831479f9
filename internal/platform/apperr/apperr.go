// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for the
request-to-SQL pipeline.

It provides a rich error type that bridges the gap between low-level
parser/planner/database errors and high-level HTTP responses.

Architecture:

  - AppError: a struct containing a stable PGRST-prefixed code, an HTTP
    status, a client-safe message, and optional debug-only detail/hint text.
  - Mapping: explicit mapping from AppError to HTTP status codes, per the
    error taxonomy table (kind -> HTTP -> code prefix).
  - Production vs debug: Details/Hint are only serialized when the server
    runs in debug mode; production responses use the coarse Message only.

Every error that leaves the parser, planner, builder, or executor should be
wrapped as an [AppError] to ensure a consistent API response body of
`{code, message, details, hint}`.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the canonical error type for the API.
//
// # Security
//
// Details and Hint are for server-side logging and debug-mode responses
// only; in production they are elided to avoid leaking internal
// implementation details (e.g., SQL text, constraint names).
type AppError struct {
	// Code is a stable, machine-readable PGRST-prefixed identifier.
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"message"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Details is additional context, elided in production responses.
	Details string `json:"details,omitempty"`
	// Hint suggests a remedy, elided in production responses.
	Hint string `json:"hint,omitempty"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// WithHint returns a copy of e with Hint set.
func (e *AppError) WithHint(hint string) *AppError {
	cp := *e
	cp.Hint = hint
	return &cp
}

// WithDetails returns a copy of e with Details set.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// # Parser / validation errors — 400, PGRST1xx

// FieldError represents a single field-level validation failure,
// accumulated by [validate.Validator] before being folded into an
// AppError's Details string.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError creates a 400 [AppError] (PGRST103) from one or more
// field-level failures, folding them into Details as "field: message"
// pairs (elided in production responses same as any other Details).
func ValidationError(msg string, details ...FieldError) *AppError {
	e := newErr("PGRST103", http.StatusBadRequest, msg)
	if len(details) == 0 {
		return e
	}
	joined := ""
	for i, d := range details {
		if i > 0 {
			joined += "; "
		}
		joined += d.Field + ": " + d.Message
	}
	return e.WithDetails(joined)
}

func InvalidPath(msg string) *AppError       { return newErr("PGRST100", http.StatusBadRequest, msg) }
func InvalidQueryParam(msg string) *AppError { return newErr("PGRST101", http.StatusBadRequest, msg) }
func InvalidHeader(msg string) *AppError     { return newErr("PGRST102", http.StatusBadRequest, msg) }
func InvalidBody(msg string) *AppError       { return newErr("PGRST107", http.StatusBadRequest, msg) }
func InvalidRange(msg string) *AppError      { return newErr("PGRST108", http.StatusBadRequest, msg) }
func InvalidMediaType(msg string) *AppError  { return newErr("PGRST109", http.StatusBadRequest, msg) }

// UnsupportedMethod is the 405 raised when a request's method and resource
// combination has no entry in the method/resource matrix.
func UnsupportedMethod(method, resource string) *AppError {
	return newErr("PGRST104", http.StatusMethodNotAllowed,
		fmt.Sprintf("%s is not supported on %s", method, resource))
}

// UnacceptableSchema is the 406 raised when Accept-Profile/Content-Profile
// names a schema that is not in the exposed list.
func UnacceptableSchema(schema string) *AppError {
	return newErr("PGRST105", http.StatusNotAcceptable, "The schema must be one of the following: "+schema)
}

// UnknownColumn is the 400 raised when a filter/order/select/payload field
// name is absent from the target table's columns; no SQL is built.
func UnknownColumn(table, column string) *AppError {
	return newErr("PGRST106", http.StatusBadRequest,
		fmt.Sprintf("Column '%s' does not exist on table '%s'", column, table)).
		WithHint("Verify the spelling and check if the column is exposed through the current role's grants.")
}

// AmbiguousRequest is the 300 raised when more than one routine overload
// matches a named-argument call.
func AmbiguousRequest(routine string) *AppError {
	return newErr("PGRST110", http.StatusMultipleChoices,
		fmt.Sprintf("Could not choose the best candidate function between overloads of '%s'", routine))
}

// AmbiguousEmbed is the 300 raised when more than one relationship can
// satisfy an embedding request.
func AmbiguousEmbed(target string) *AppError {
	return newErr("PGRST201", http.StatusMultipleChoices,
		fmt.Sprintf("More than one relationship was found for '%s'", target)).
		WithHint("Disambiguate the embedding using the !hint syntax.")
}

// Singularity is the 406 raised when `Accept: application/vnd.pgrst.object+json`
// was requested but the result set held a row count other than exactly one.
func Singularity(actual int) *AppError {
	return newErr("PGRST116", http.StatusNotAcceptable,
		fmt.Sprintf("JSON object requested, %d rows returned", actual))
}

// # Auth errors — 401/403, PGRST20x

func InvalidJWT(cause error) *AppError {
	return newErr("PGRST301", http.StatusUnauthorized, "JWT invalid").withCause(cause)
}
func ExpiredJWT() *AppError {
	return newErr("PGRST302", http.StatusUnauthorized, "JWT expired")
}
func MissingJWT() *AppError {
	return newErr("PGRST303", http.StatusUnauthorized, "Anonymous access")
}

// Unauthorized is a general 401, used by middleware prior to role
// resolution (e.g. malformed Authorization header).
func Unauthorized(msg string) *AppError {
	return newErr("PGRST301", http.StatusUnauthorized, msg)
}

// Forbidden is the 403 raised when the resolved role lacks a DB grant.
func Forbidden(msg string) *AppError {
	return newErr("PGRST203", http.StatusForbidden, msg)
}

// # Not found errors — 404, PGRST3xx

// NotFound creates a 404 [AppError] for a named resource kind.
func NotFound(kind string) *AppError {
	return newErr("PGRST205", http.StatusNotFound, kind+" not found")
}

// NotFoundCode creates a 404 [AppError] with an explicit code, used when
// the spec's taxonomy assigns a specific PGRST3xx code to a resource kind
// (relation/routine/column/relationship).
func NotFoundCode(code, kind, name string) *AppError {
	return newErr(code, http.StatusNotFound, fmt.Sprintf("Could not find the %s '%s'", kind, name))
}

// # Schema cache errors — 500/503, PGRST40x

func SchemaCacheNotLoaded() *AppError {
	return newErr("PGRST401", http.StatusServiceUnavailable, "Schema cache is not loaded yet")
}
func SchemaCacheLoadFailed(cause error) *AppError {
	return newErr("PGRST402", http.StatusInternalServerError, "Schema cache failed to load").withCause(cause)
}

// # Database errors — PGRST50x

func DatabaseConstraint(msg string, cause error) *AppError {
	return newErr("PGRST503", http.StatusConflict, msg).withCause(cause)
}
func DatabaseSyntaxOrAccess(msg string, cause error) *AppError {
	return newErr("PGRST504", http.StatusBadRequest, msg).withCause(cause)
}
func DatabaseAuth(msg string, cause error) *AppError {
	return newErr("PGRST505", http.StatusForbidden, msg).withCause(cause)
}
func RaiseException(msg string, cause error) *AppError {
	return newErr("PGRST506", http.StatusBadRequest, msg).withCause(cause)
}

// ConnectionPool is the 503 raised when the pool permit wait is exhausted.
func ConnectionPool() *AppError {
	return newErr("PGRST500", http.StatusServiceUnavailable, "Connection pool timed out acquiring a connection")
}

// MaxAffectedExceeded is the rollback-inducing error when the preference's
// max-affected bound is exceeded by an UPDATE/DELETE.
func MaxAffectedExceeded(max, actual int64) *AppError {
	return newErr("PGRST209", http.StatusPreconditionFailed,
		fmt.Sprintf("The maximum number of rows allowed to change was surpassed (max %d, affected %d)", max, actual))
}

// # Internal/config errors — 500, PGRST9xx

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
func Internal(cause error) *AppError {
	return newErr("PGRST900", http.StatusInternalServerError, "An unexpected error occurred").withCause(cause)
}

// Config creates a 500 [AppError] for a misconfiguration detected at
// startup or request time.
func Config(msg string) *AppError {
	return newErr("PGRST901", http.StatusInternalServerError, msg)
}

// # Helpers

func newErr(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: status}
}

func (e *AppError) withCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
