package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// Stable machine-checkable error codes returned to API clients.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidFileType     = "INVALID_FILE_TYPE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeStorageFailure      = "STORAGE_FAILURE"
	CodeAccessDenied        = "ACCESS_DENIED"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeAssistantNotFound   = "ASSISTANT_NOT_FOUND"
	CodeDocumentNotFound    = "DOCUMENT_NOT_FOUND"
	CodeOwnershipMismatch   = "OWNERSHIP_MISMATCH"
	CodeNoAssistantSelected = "NO_ASSISTANT_SELECTED"
	CodeUpstreamFailure     = "UPSTREAM_FAILURE"
	CodeIndexingFailed      = "INDEXING_FAILED"
	CodeIncompleteStream    = "INCOMPLETE_STREAM"
	CodeUserNotFound        = "USER_NOT_FOUND"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(code string, message string) *AppError {
	return NewError(http.StatusForbidden, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(code string, message string) *AppError {
	return NewError(http.StatusConflict, code, message)
}

// NewPayloadTooLargeError creates a 413 Request Entity Too Large error
func NewPayloadTooLargeError(code string, message string) *AppError {
	return NewError(http.StatusRequestEntityTooLarge, code, message)
}

// NewBadGatewayError creates a 502 Bad Gateway error
func NewBadGatewayError(code string, message string) *AppError {
	return NewError(http.StatusBadGateway, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// Is checks if the target error is of type AppError
func Is(err error, target *AppError) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Code == target.Code
}

// HasCode checks whether err is an AppError carrying the given code
func HasCode(err error, code string) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Code == code
}
