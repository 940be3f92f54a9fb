// Package apperrors provides coded application errors shared across the
// service. State-changing failures (not found, already processed,
// insufficient stock) are surfaced to callers with structured detail;
// side-effect failures (notifications, cache) are handled locally and never
// wrapped in these codes.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an application error.
type Code string

const (
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeNotFound          Code = "NOT_FOUND"
	CodeAlreadyProcessed  Code = "ALREADY_PROCESSED"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeInternal          Code = "INTERNAL"
)

// Error is a coded error with optional structured detail.
type Error struct {
	Code    Code
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap annotates an underlying error with a code and message.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// InvalidInput reports a malformed request field.
func InvalidInput(field, message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf("%s: %s", field, message)}
}

// AlreadyProcessed reports an approval that has left the pending state.
func AlreadyProcessed(approvalID, status string) *Error {
	return &Error{
		Code:    CodeAlreadyProcessed,
		Message: fmt.Sprintf("approval %s has already been processed (status: %s)", approvalID, status),
	}
}

// InsufficientStock carries the per-item shortage report that blocked an
// approval. The approval is reopened, not dropped, so the caller can retry.
func InsufficientStock(shortages any) *Error {
	return &Error{
		Code:    CodeInsufficientStock,
		Message: "insufficient stock for one or more order items",
		Details: shortages,
	}
}

// CodeOf extracts the code from err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the status code the HTTP layer should return.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyProcessed, CodeInsufficientStock:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
