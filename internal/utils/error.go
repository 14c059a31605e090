package utils

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes with HTTP status mapping
const (
	// General errors
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"

	// Pipeline errors. The scan-stage codes are fatal to a run: without a
	// token or a scan snapshot there is nothing to walk. Query and publish
	// errors are recovered at table and document scope.
	ErrCodeAuth              = "AUTH_ERROR"
	ErrCodeWorkspaceNotFound = "WORKSPACE_NOT_FOUND"
	ErrCodeScanSubmit        = "SCAN_SUBMIT_ERROR"
	ErrCodeScanFailed        = "SCAN_FAILED"
	ErrCodeScanTimeout       = "SCAN_TIMEOUT"
	ErrCodeScanResult        = "SCAN_RESULT_ERROR"
	ErrCodeQuery             = "QUERY_ERROR"
	ErrCodePublish           = "PUBLISH_ERROR"

	// Sync service errors
	ErrCodeSyncAlreadyRunning = "SYNC_ALREADY_RUNNING"
	ErrCodeRunNotFound        = "RUN_NOT_FOUND"

	// Authentication errors
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeInvalidToken = "INVALID_TOKEN"
)

// HTTPStatus maps error codes to HTTP status codes
var HTTPStatus = map[string]int{
	ErrCodeInvalidRequest:     http.StatusBadRequest,
	ErrCodeValidationFailed:   http.StatusUnprocessableEntity,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeInternalError:      http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeRateLimitExceeded:  http.StatusTooManyRequests,

	ErrCodeAuth:              http.StatusBadGateway,
	ErrCodeWorkspaceNotFound: http.StatusBadGateway,
	ErrCodeScanSubmit:        http.StatusBadGateway,
	ErrCodeScanFailed:        http.StatusBadGateway,
	ErrCodeScanTimeout:       http.StatusGatewayTimeout,
	ErrCodeScanResult:        http.StatusBadGateway,
	ErrCodeQuery:             http.StatusBadGateway,
	ErrCodePublish:           http.StatusBadGateway,

	ErrCodeSyncAlreadyRunning: http.StatusConflict,
	ErrCodeRunNotFound:        http.StatusNotFound,

	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeInvalidToken: http.StatusUnauthorized,
}

// AppError represents an application error with additional context
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorBuilder provides a fluent interface for creating errors
type ErrorBuilder struct {
	code    string
	message string
	details string
	cause   error
}

// NewErrorBuilder creates a new error builder
func NewErrorBuilder(code string) *ErrorBuilder {
	return &ErrorBuilder{code: code}
}

// WithMessage sets the error message
func (eb *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	eb.message = message
	return eb
}

// WithDetails sets the error details
func (eb *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	eb.details = details
	return eb
}

// WithCause sets the underlying error cause
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.cause = cause
	return eb
}

// Build constructs the final AppError
func (eb *ErrorBuilder) Build() *AppError {
	if eb.message == "" {
		eb.message = getDefaultMessage(eb.code)
	}

	return &AppError{
		Code:    eb.code,
		Message: eb.message,
		Details: eb.details,
		Cause:   eb.cause,
	}
}

// getDefaultMessage returns a default message for error codes
func getDefaultMessage(code string) string {
	messages := map[string]string{
		ErrCodeInvalidRequest:     "The request is invalid",
		ErrCodeValidationFailed:   "Validation failed",
		ErrCodeUnauthorized:       "Unauthorized access",
		ErrCodeForbidden:          "Access forbidden",
		ErrCodeNotFound:           "Resource not found",
		ErrCodeConflict:           "Resource conflict",
		ErrCodeInternalError:      "Internal server error",
		ErrCodeServiceUnavailable: "Service temporarily unavailable",
		ErrCodeRateLimitExceeded:  "Rate limit exceeded",

		ErrCodeAuth:              "Failed to acquire access token",
		ErrCodeWorkspaceNotFound: "Workspace not found",
		ErrCodeScanSubmit:        "Workspace scan submission failed",
		ErrCodeScanFailed:        "Workspace scan failed",
		ErrCodeScanTimeout:       "Workspace scan timed out",
		ErrCodeScanResult:        "Workspace scan result could not be read",
		ErrCodeQuery:             "Table query failed",
		ErrCodePublish:           "Document publish failed",

		ErrCodeSyncAlreadyRunning: "A sync run is already in progress",
		ErrCodeRunNotFound:        "Sync run not found",

		ErrCodeTokenExpired: "Token expired",
		ErrCodeInvalidToken: "Invalid token",
	}

	if msg, exists := messages[code]; exists {
		return msg
	}
	return "Unknown error"
}

// Convenience functions for common error types

func NewAuthError(cause error) *AppError {
	return NewErrorBuilder(ErrCodeAuth).
		WithCause(cause).
		WithDetails(causeDetail(cause)).
		Build()
}

func NewWorkspaceNotFoundError(name string) *AppError {
	return NewErrorBuilder(ErrCodeWorkspaceNotFound).
		WithMessage(fmt.Sprintf("workspace %q not found", name)).
		Build()
}

func NewScanSubmitError(statusCode int, body string) *AppError {
	return NewErrorBuilder(ErrCodeScanSubmit).
		WithDetails(fmt.Sprintf("status %d: %s", statusCode, body)).
		Build()
}

func NewScanFailedError(scanID, remoteStatus string) *AppError {
	return NewErrorBuilder(ErrCodeScanFailed).
		WithDetails(fmt.Sprintf("scan %s reported status %s", scanID, remoteStatus)).
		Build()
}

func NewScanTimeoutError(scanID string, waited time.Duration) *AppError {
	return NewErrorBuilder(ErrCodeScanTimeout).
		WithDetails(fmt.Sprintf("scan %s still running after %s", scanID, waited)).
		Build()
}

func NewScanResultError(cause error) *AppError {
	return NewErrorBuilder(ErrCodeScanResult).
		WithCause(cause).
		WithDetails(causeDetail(cause)).
		Build()
}

func NewQueryError(datasetName, tableName string, cause error) *AppError {
	return NewErrorBuilder(ErrCodeQuery).
		WithMessage(fmt.Sprintf("query failed for table %s/%s", datasetName, tableName)).
		WithCause(cause).
		WithDetails(causeDetail(cause)).
		Build()
}

func NewPublishError(documentID string, statusCode int, body string) *AppError {
	return NewErrorBuilder(ErrCodePublish).
		WithMessage(fmt.Sprintf("index rejected document %s", documentID)).
		WithDetails(fmt.Sprintf("status %d: %s", statusCode, body)).
		Build()
}

func NewNotFoundError(resource string) *AppError {
	return NewErrorBuilder(ErrCodeNotFound).
		WithMessage(fmt.Sprintf("%s not found", resource)).
		Build()
}

func NewValidationError(message string, details string) *AppError {
	return NewErrorBuilder(ErrCodeValidationFailed).
		WithMessage(message).
		WithDetails(details).
		Build()
}

func causeDetail(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}

// AsAppError unwraps err to an AppError if one is in its chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsErrorType checks if an error matches a specific error code
func IsErrorType(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsFatalSyncError reports whether err aborts a sync run. Fatal errors
// leave the run with no scan snapshot to work from; everything else is
// recovered mid-run and only surfaces in the aggregate counts.
func IsFatalSyncError(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return true
	}
	switch appErr.Code {
	case ErrCodeQuery, ErrCodePublish:
		return false
	}
	return true
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		if status, exists := HTTPStatus[appErr.Code]; exists {
			return status
		}
	}
	return http.StatusInternalServerError
}
