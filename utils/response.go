package utils

import (
	"net/http"
	"time"

	"rescuelink/models"

	"github.com/gin-gonic/gin"
)

// Success responses
func SuccessResponse(c *gin.Context, message string, data interface{}, notifications []models.Notification) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:       true,
		Message:       message,
		Data:          data,
		Notifications: notifications,
		Timestamp:     time.Now(),
	})
}

func CreatedResponse(c *gin.Context, message string, data interface{}, notifications []models.Notification) {
	c.JSON(http.StatusCreated, models.APIResponse{
		Success:       true,
		Message:       message,
		Data:          data,
		Notifications: notifications,
		Timestamp:     time.Now(),
	})
}

// Error responses
func ErrorResponse(c *gin.Context, statusCode int, message string, details interface{}) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Message: message,
		Error: &models.APIError{
			Code:    getErrorCode(statusCode),
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
	})
}

// ServiceErrorResponse reports a failed view action. The view has already
// recorded its destructive notification, which travels with the error.
func ServiceErrorResponse(c *gin.Context, err error, notifications []models.Notification) {
	statusCode := StatusCodeOf(err)
	code := getErrorCode(statusCode)
	message := err.Error()
	var details interface{}
	if serviceErr, ok := GetServiceError(err); ok {
		code = serviceErr.Code
		message = serviceErr.Message
		if serviceErr.Details != "" {
			details = serviceErr.Details
		}
	}

	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Message: message,
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Notifications: notifications,
		Timestamp:     time.Now(),
	})
}

func ValidationErrorResponse(c *gin.Context, validationErrors []ValidationError) {
	c.JSON(http.StatusBadRequest, models.APIResponse{
		Success: false,
		Message: "Validation failed",
		Error: &models.APIError{
			Code:    models.ErrCodeValidation,
			Message: "Validation failed",
			Details: validationErrors,
		},
		Timestamp: time.Now(),
	})
}

func BadRequestResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message, nil)
}

func NotFoundResponse(c *gin.Context, resource string) {
	ErrorResponse(c, http.StatusNotFound, resource+" not found", nil)
}

// HealthCheckResponse creates a health check response
func HealthCheckResponse(services map[string]string, version, uptime string) models.HealthResponse {
	status := "healthy"
	for _, serviceStatus := range services {
		if serviceStatus != "healthy" {
			status = "unhealthy"
			break
		}
	}

	return models.HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
		Version:   version,
		Uptime:    uptime,
	}
}

// Helper functions
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return models.ErrCodeValidation
	case http.StatusUnauthorized:
		return models.ErrCodeAuthentication
	case http.StatusForbidden:
		return models.ErrCodeAuthorization
	case http.StatusNotFound:
		return models.ErrCodeNotFound
	case http.StatusConflict:
		return models.ErrCodeConflict
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return models.ErrCodeExternal
	default:
		return models.ErrCodeInternal
	}
}
