// Package errors provides standardized error handling for the intake service.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidPatch         ErrorCode = "INVALID_PATCH"
	ErrCodeStepBlocked          ErrorCode = "STEP_BLOCKED"
	ErrCodeApplicationSubmitted ErrorCode = "APPLICATION_SUBMITTED"
	ErrCodeInvalidFlow          ErrorCode = "INVALID_FLOW_DEFINITION"

	ErrCodeTokenInvalid       ErrorCode = "TOKEN_INVALID"
	ErrCodeAuthenticationFail ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"

	ErrCodeDraftNotFound     ErrorCode = "DRAFT_NOT_FOUND"
	ErrCodeDraftFetchFailed  ErrorCode = "DRAFT_FETCH_FAILED"
	ErrCodeDraftSaveFailed   ErrorCode = "DRAFT_SAVE_FAILED"
	ErrCodeStaleWrite        ErrorCode = "STALE_WRITE"
	ErrCodeSubmitFailed      ErrorCode = "SUBMIT_FAILED"
	ErrCodeSchemaViolation   ErrorCode = "SCHEMA_VIOLATION"
	ErrCodeStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeExternalService   ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout           ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound  ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule      ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotificationsFail ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a metadata entry and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable validation error.
func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Validation failed", details, false, nil)
}

// NewInvalidPatchError is returned when an update patch does not fit its domain.
func NewInvalidPatchError(domain string, err error) *StandardError {
	return newError(ErrCodeInvalidPatch, fmt.Sprintf("Invalid update for %s", domain), err.Error(), false, err)
}

// NewStepBlockedError is returned when advancing past a step that does not validate.
func NewStepBlockedError(stepID string, fields []string) *StandardError {
	return newError(ErrCodeStepBlocked, "Current step is incomplete",
		fmt.Sprintf("stepId: %s, fields: %s", stepID, strings.Join(fields, ",")), false, nil).
		WithMetadata("stepId", stepID)
}

// NewApplicationSubmittedError is returned for edits or saves after the final submit.
func NewApplicationSubmittedError(userID string) *StandardError {
	return newError(ErrCodeApplicationSubmitted, "Application already submitted",
		fmt.Sprintf("userId: %s", userID), false, nil)
}

// NewInvalidFlowError wraps flow definition problems.
func NewInvalidFlowError(flowID string, err error) *StandardError {
	return newError(ErrCodeInvalidFlow, fmt.Sprintf("Flow %q is invalid", flowID), err.Error(), false, err)
}

// NewTokenInvalidError creates a non-retryable token error.
func NewTokenInvalidError(details string) *StandardError {
	return newError(ErrCodeTokenInvalid, "Token could not be decoded", details, false, nil)
}

// NewAuthenticationError creates a non-retryable authentication error.
func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthenticationFail, "Authentication failed", details, false, nil)
}

// NewForbiddenError is returned when a token does not own the requested draft.
func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Access to this application is not allowed", details, false, nil)
}

// NewDraftNotFoundError creates a non-retryable not found error.
func NewDraftNotFoundError(userID string) *StandardError {
	return newError(ErrCodeDraftNotFound, "No draft stored for user", fmt.Sprintf("userId: %s", userID), false, nil)
}

// NewDraftFetchFailedError creates a retryable fetch error.
func NewDraftFetchFailedError(err error) *StandardError {
	return newError(ErrCodeDraftFetchFailed, "Draft fetch failed", err.Error(), true, err)
}

// NewDraftSaveFailedError creates a retryable save error.
func NewDraftSaveFailedError(err error) *StandardError {
	return newError(ErrCodeDraftSaveFailed, "Draft save failed", err.Error(), true, err)
}

// NewStaleWriteError is returned by strict stores for out-of-order saves.
func NewStaleWriteError(userID string, stored, incoming int64) *StandardError {
	return newError(ErrCodeStaleWrite, "Draft version is older than the stored draft",
		fmt.Sprintf("userId: %s, stored: %d, incoming: %d", userID, stored, incoming), false, nil).
		WithMetadata("storedVersion", stored).
		WithMetadata("incomingVersion", incoming)
}

// NewSubmitFailedError creates a submit error. Entered data is kept. It is
// retryable unless the backend rejected the data itself.
func NewSubmitFailedError(err error) *StandardError {
	if HasCode(err, ErrCodeSchemaViolation) || HasCode(err, ErrCodeValidationFailed) {
		return newError(ErrCodeSubmitFailed, "Application could not be submitted, please correct your answers", err.Error(), false, err)
	}
	return newError(ErrCodeSubmitFailed, "Application could not be submitted, please try again", err.Error(), true, err)
}

// NewSchemaViolationError creates a non-retryable schema error.
func NewSchemaViolationError(details string) *StandardError {
	return newError(ErrCodeSchemaViolation, "Application data does not match the expected shape", details, false, nil)
}

// NewStoreUnavailableError creates a retryable store error.
func NewStoreUnavailableError(backend string, err error) *StandardError {
	return newError(ErrCodeStoreUnavailable, fmt.Sprintf("Draft store '%s' unavailable", backend), err.Error(), true, err)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationsFail, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true, err)
}

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true, err)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false, nil)
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard extracts a StandardError from err, normalising unknown errors
// to INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Retryable
}

// HTTPStatus maps an error code to the status returned by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidPatch, ErrCodeSchemaViolation, ErrCodeStepBlocked:
		return http.StatusBadRequest
	case ErrCodeTokenInvalid, ErrCodeAuthenticationFail:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeDraftNotFound, ErrCodeResourceNotFound:
		return http.StatusNotFound
	case ErrCodeStaleWrite, ErrCodeApplicationSubmitted:
		return http.StatusConflict
	case ErrCodeStoreUnavailable, ErrCodeExternalService:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TOKEN") || strings.Contains(codeStr, "AUTH") || code == ErrCodeForbidden:
		return "AUTH"
	case strings.Contains(codeStr, "DRAFT") || strings.Contains(codeStr, "STORE") || code == ErrCodeStaleWrite:
		return "STORAGE"
	case strings.Contains(codeStr, "SUBMIT") || code == ErrCodeApplicationSubmitted:
		return "SUBMISSION"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "EXTERNAL"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") ||
		strings.Contains(codeStr, "SCHEMA") || code == ErrCodeStepBlocked:
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
