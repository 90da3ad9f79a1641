// Package errorutil carries the error type rendered by the HTTP layer.
package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes rendered in API responses.
const (
	CodeValidation       = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeTimeout          = "TIMEOUT"
	CodeHTTP             = "HTTP_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// DomainError is an error with an API code and HTTP status.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewNotFound reports a missing resource, e.g. NewNotFound("ticket", nil).
func NewNotFound(resource string, details map[string]any) error {
	return NewDomainError(CodeNotFound, resource+" not found", http.StatusNotFound, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return internal(err)
}

// FromStatus builds a DomainError for a bare HTTP status, as raised by the
// router for unknown routes or methods.
func FromStatus(status int, message string) *DomainError {
	code := CodeHTTP
	switch status {
	case http.StatusNotFound:
		code = CodeNotFound
	case http.StatusUnauthorized:
		code = CodeUnauthorized
	case http.StatusForbidden:
		code = CodeForbidden
	case http.StatusMethodNotAllowed:
		code = CodeMethodNotAllowed
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = CodeTimeout
	}
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		code = CodeInternal
	}
	return NewDomainError(code, message, status, nil)
}

// ToDomainError converts err to a DomainError. Missing rows become
// NOT_FOUND, an expired request deadline becomes TIMEOUT and anything
// unrecognised is an internal error.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, pgx.ErrNoRows):
		return NewDomainError(CodeNotFound, "resource not found", http.StatusNotFound, nil)
	case errors.Is(err, context.DeadlineExceeded):
		return &DomainError{
			Code:       CodeTimeout,
			Message:    "request timed out",
			HTTPStatus: http.StatusGatewayTimeout,
			Err:        err,
		}
	default:
		return internal(err)
	}
}

// MapError is ToDomainError typed as error, preserving nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// HasCode reports whether err carries the given API code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

func internal(err error) *DomainError {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
