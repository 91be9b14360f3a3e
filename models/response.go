package models

import "time"

// Standard API Response wrapper used by the portal gateway
type APIResponse struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	Data          interface{}    `json:"data,omitempty"`
	Error         *APIError      `json:"error,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// Notification is the toast shown to the operator after an action.
type Notification struct {
	Variant     NotificationVariant `json:"variant"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
}

type NotificationVariant string

const (
	VariantDefault     NotificationVariant = "default"
	VariantDestructive NotificationVariant = "destructive"
)

// Dashboard metrics shown on the coordinator portal
type DashboardMetrics struct {
	Active         int `json:"active"`
	AvailableTeams int `json:"availableTeams"`
	InProgress     int `json:"inProgress"`
	Resolved       int `json:"resolved"`
}

// Health Check Response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

// Error Response Codes
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeAuthentication = "AUTHENTICATION_ERROR"
	ErrCodeAuthorization  = "AUTHORIZATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeExternal       = "EXTERNAL_SERVICE_ERROR"
)
