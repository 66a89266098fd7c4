// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors, and the HTTP layer maps them to
// status codes while the pipeline maps them to per-lead failure markers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindConflict indicates a conflict with existing state.
	KindConflict
	// KindUnauthorized indicates authentication is required or failed.
	KindUnauthorized
	// KindBadRequest indicates a malformed or invalid request.
	KindBadRequest
	// KindInternal indicates an unexpected internal error.
	KindInternal
	// KindInvalidRecord marks an input row that cannot be processed (missing or duplicate id).
	KindInvalidRecord
	// KindEnrichmentExhausted marks an enrichment that ran out of retry attempts.
	KindEnrichmentExhausted
	// KindSchedulingConflict marks a follow-up fire whose status no longer matches.
	KindSchedulingConflict
	// KindStoreConflict marks a failed compare-and-set precondition in the record store.
	KindStoreConflict
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindNotFound:            "not_found",
	KindValidation:          "validation",
	KindConflict:            "conflict",
	KindUnauthorized:        "unauthorized",
	KindBadRequest:          "bad_request",
	KindInternal:            "internal",
	KindInvalidRecord:       "invalid_record",
	KindEnrichmentExhausted: "enrichment_exhausted",
	KindSchedulingConflict:  "scheduling_conflict",
	KindStoreConflict:       "store_conflict",
}

// String returns the snake_case name used in logs and API payloads.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is a domain error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
	Details any    // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest, KindInvalidRecord:
		return http.StatusBadRequest
	case KindConflict, KindStoreConflict, KindSchedulingConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindEnrichmentExhausted:
		return http.StatusBadGateway
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the operation and returns the error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails sets additional details and returns the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict creates a conflict error.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// InvalidRecord creates an invalid input record error.
func InvalidRecord(message string) *Error {
	return New(KindInvalidRecord, message)
}

// EnrichmentExhausted wraps the last enrichment failure after the retry bound was reached.
func EnrichmentExhausted(message string, err error) *Error {
	return Wrap(KindEnrichmentExhausted, message, err)
}

// SchedulingConflict creates a stale follow-up error.
func SchedulingConflict(message string) *Error {
	return New(KindSchedulingConflict, message)
}

// StoreConflict creates a compare-and-set failure.
func StoreConflict(message string) *Error {
	return New(KindStoreConflict, message)
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is found.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err carries an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
