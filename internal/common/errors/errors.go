// Package errors provides standardized error handling for the support pipeline.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAppSlug   ErrorCode = "INVALID_APP_SLUG"
	ErrCodeContactRequired  ErrorCode = "CONTACT_REQUIRED"

	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeDuplicateSubmission ErrorCode = "DUPLICATE_SUBMISSION"

	ErrCodeDocumentNotFound ErrorCode = "DOCUMENT_NOT_FOUND"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"

	ErrCodeCompletionFailed  ErrorCode = "COMPLETION_FAILED"
	ErrCodeCompletionTimeout ErrorCode = "COMPLETION_TIMEOUT"

	ErrCodeTicketInsertFailed ErrorCode = "TICKET_INSERT_FAILED"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	ErrCodeAlertSendFailed ErrorCode = "ALERT_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. HTTP Integration
// ==========================

// HTTPStatus maps an error code to the status the server layer should return.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidAppSlug, ErrCodeContactRequired:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeDocumentNotFound:
		return http.StatusNotFound
	case ErrCodeDuplicateSubmission:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError creates a non-retryable validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidAppSlugError rejects slugs that could inject into the index filter.
func NewInvalidAppSlugError(slug string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidAppSlug,
		Message:   "app_slug must match ^[a-z0-9-]+$ or be the wildcard *",
		Details:   slug,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewContactRequiredError rejects forced anonymous submissions.
func NewContactRequiredError() *StandardError {
	return &StandardError{
		Code:      ErrCodeContactRequired,
		Message:   "A user id or email is required to create a ticket",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthorizedError creates an authorization error.
func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Missing or invalid admin token",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError creates a rate-limit rejection with a retry-after hint.
func NewRateLimitedError(retryAfter time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "Too many requests, slow down",
		Retryable: true,
		Metadata: map[string]interface{}{
			"retryAfterSeconds": int(retryAfter.Seconds()),
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateSubmissionError creates a dedup rejection.
func NewDuplicateSubmissionError() *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateSubmission,
		Message:   "An identical ticket was submitted recently",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentNotFoundError creates a missing-document error.
func NewDocumentNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentNotFound,
		Message:   "Knowledge-base document not found",
		Details:   id,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageError creates a retryable persistence error.
func NewStorageError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTicketInsertFailed,
		Message:   "Failed to persist ticket",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// RetryAfterSeconds extracts the retry hint from a rate-limit error, 0 otherwise.
func RetryAfterSeconds(e *StandardError) int {
	if e == nil || e.Metadata == nil {
		return 0
	}
	if v, ok := e.Metadata["retryAfterSeconds"].(int); ok {
		return v
	}
	return 0
}
