package models

import "time"

// ErrorResponse is returned by the gateway when a portal request fails
// before reaching a view (guard, validation, unknown route).
type ErrorResponse struct {
	// Error represents the error type or category
	Error string `json:"error"`

	// Message provides a human-readable description of the error
	Message string `json:"message"`

	// Code is the application specific error code
	Code string `json:"code"`

	// RequestID correlates the response with gateway logs
	RequestID string `json:"request_id,omitempty"`

	// Details contains additional context-specific information about the error
	Details map[string]interface{} `json:"details,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NewErrorResponse creates a new ErrorResponse with the current timestamp
func NewErrorResponse(errorType, message, code, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error:     errorType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}
}

// WithDetails adds additional details to the error response
func (e *ErrorResponse) WithDetails(key string, value interface{}) *ErrorResponse {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common error types
const (
	ErrorTypeValidation     = "VALIDATION_ERROR"
	ErrorTypeAuthentication = "AUTHENTICATION_ERROR"
	ErrorTypeAuthorization  = "AUTHORIZATION_ERROR"
	ErrorTypeNotFound       = "NOT_FOUND"
	ErrorTypeInternal       = "INTERNAL_SERVER_ERROR"
	ErrorTypeBadRequest     = "BAD_REQUEST"
)
