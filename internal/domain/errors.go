// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the semantic category of an error
type ErrorType int

const (
	ErrorTypeValidation  ErrorType = iota // Input validation errors (400 Bad Request)
	ErrorTypeNotFound                     // Resource not found errors (404 Not Found)
	ErrorTypeConflict                     // Resource conflict errors (409 Conflict)
	ErrorTypeInternal                     // Internal server errors (500 Internal Server Error)
	ErrorTypeUnavailable                  // Service unavailable errors (503 Service Unavailable)
)

// DomainError represents an error with semantic type information
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error // underlying error for wrapping
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the semantic type of an error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal // default fallback
}

// Error constructors for different types
func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

func NewConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeConflict, Message: message, Err: errors.Join(err...)}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}

func NewUnavailableError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnavailable, Message: message, Err: errors.Join(err...)}
}

// Sentinel errors for the booking and webhook state machines.
var (
	// ErrPaymentNotComplete is returned when a video room is requested for a
	// booking whose payment has not succeeded.
	ErrPaymentNotComplete = NewValidationError("booking payment is not complete")

	// ErrVideoNotApplicable is returned when a booking's lesson is not held
	// over video (e.g. in-person lessons).
	ErrVideoNotApplicable = NewValidationError("lesson does not take place over video")

	// ErrInvalidSignature is returned when a webhook payload fails
	// verification against every configured signing secret.
	ErrInvalidSignature = NewValidationError("webhook signature verification failed")

	// ErrRoomUnavailable is returned when a booking has no active room
	// (never created, or already cleaned up after expiration).
	ErrRoomUnavailable = NewNotFoundError("video session unavailable")
)

// ProviderError wraps a non-2xx response from the room provider API,
// preserving the upstream status code and error payload.
type ProviderError struct {
	StatusCode int
	Payload    string
}

func (e *ProviderError) Error() string {
	if e.Payload != "" {
		return fmt.Sprintf("room provider error (status %d): %s", e.StatusCode, e.Payload)
	}
	return fmt.Sprintf("room provider error (status %d)", e.StatusCode)
}

// MissingMetadataError reports every required payment-metadata field that was
// absent from a webhook payload, so a single redelivery fix covers all of them.
type MissingMetadataError struct {
	Fields []string
}

func (e *MissingMetadataError) Error() string {
	return "missing required payment metadata fields: " + strings.Join(e.Fields, ", ")
}
