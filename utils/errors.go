package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(code, message string) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewServiceErrorWithStatus creates a service error with specific HTTP status
func NewServiceErrorWithStatus(code, message string, statusCode int) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// GetServiceError extracts a ServiceError anywhere in the error chain
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

// HasCode reports whether err carries the given service error code
func HasCode(err error, code string) bool {
	serviceErr, ok := GetServiceError(err)
	return ok && serviceErr.Code == code
}

// StatusCodeOf returns the HTTP status associated with err, 500 if unknown
func StatusCodeOf(err error) int {
	if serviceErr, ok := GetServiceError(err); ok && serviceErr.StatusCode != 0 {
		return serviceErr.StatusCode
	}
	return http.StatusInternalServerError
}

// Common service error constructors
func NewUnauthenticatedError(message string) error {
	return ServiceError{
		Code:       ErrCodeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) error {
	return ServiceError{
		Code:       ErrCodeAuthorization,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewNotFoundError(resource string) error {
	return ServiceError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func NewBadRequestError(message string) error {
	return ServiceError{
		Code:       ErrCodeBadRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationError(message string) error {
	return ServiceError{
		Code:       ErrCodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNetworkError(message string, cause error) error {
	return ServiceError{
		Code:       ErrCodeNetwork,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusServiceUnavailable,
	}
}

// NewAPIError describes a non-2xx answer from the backend
func NewAPIError(statusCode int, message string) error {
	code := ErrCodeAPI
	switch statusCode {
	case http.StatusUnauthorized:
		code = ErrCodeAuthentication
	case http.StatusForbidden:
		code = ErrCodeAuthorization
	case http.StatusNotFound:
		code = ErrCodeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = ErrCodeValidation
	}
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func NewGeolocationError(message string, cause error) error {
	return ServiceError{
		Code:       ErrCodeGeolocation,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewInvalidTransitionError(from, to string) error {
	return ServiceError{
		Code:       ErrCodeInvalidTransition,
		Message:    "Status transition not allowed",
		Details:    fmt.Sprintf("%s -> %s", from, to),
		StatusCode: http.StatusConflict,
	}
}

func NewPartialFailureError(message string, cause error) error {
	return ServiceError{
		Code:       ErrCodePartialFailure,
		Message:    message,
		Cause:      cause,
		StatusCode: http.StatusMultiStatus,
	}
}

// ErrViewClosed is returned when a response arrives after its view was torn down.
var ErrViewClosed = NewServiceError(ErrCodeViewClosed, "View is no longer mounted")

// Error code constants
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeAuthentication    = "AUTHENTICATION_ERROR"
	ErrCodeAuthorization     = "AUTHORIZATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeNetwork           = "NETWORK_ERROR"
	ErrCodeAPI               = "API_ERROR"
	ErrCodeGeolocation       = "GEOLOCATION_ERROR"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodePartialFailure    = "PARTIAL_FAILURE"
	ErrCodeViewClosed        = "VIEW_CLOSED"
)
