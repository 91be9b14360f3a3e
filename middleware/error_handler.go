package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"rescuelink/models"
	"rescuelink/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

// Handle recovers panics and renders errors attached with c.Error when the
// handler did not write a response itself.
func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				eh.handlePanic(c, err)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			eh.processError(c, c.Errors.Last().Err)
		}
	})
}

func (eh *ErrorHandler) handlePanic(c *gin.Context, err interface{}) {
	stack := string(debug.Stack())
	eh.logger.WithFields(logrus.Fields{
		"panic":      err,
		"stack":      stack,
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    c.GetString("userID"),
	}).Error("Panic recovered")

	response := models.NewErrorResponse(models.ErrorTypeInternal, "Internal server error", "PANIC_RECOVERED", c.GetString("request_id"))
	if eh.environment == "development" {
		response.WithDetails("panic", err).WithDetails("stack", stack)
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, response)
}

func (eh *ErrorHandler) processError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")
	fields := logrus.Fields{
		"error":      err.Error(),
		"request_id": requestID,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    c.GetString("userID"),
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		eh.logger.WithFields(fields).Warn("Client error")
		response := models.NewErrorResponse(models.ErrorTypeValidation, "Validation failed", "VALIDATION_FAILED", requestID)
		for _, fe := range validationErrs {
			response.WithDetails(fe.Field(), fe.Tag())
		}
		c.JSON(http.StatusBadRequest, response)
		return
	}

	if serviceErr, ok := utils.GetServiceError(err); ok {
		status := serviceErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status >= 500 {
			eh.logger.WithFields(fields).Error("Server error")
		} else {
			eh.logger.WithFields(fields).Warn("Client error")
		}
		response := models.NewErrorResponse(serviceErr.Code, serviceErr.Message, serviceErr.Code, requestID)
		if serviceErr.Details != "" {
			response.WithDetails("details", serviceErr.Details)
		}
		c.JSON(status, response)
		return
	}

	eh.logger.WithFields(fields).Error("Unknown error")
	response := models.NewErrorResponse(models.ErrorTypeInternal, "An unexpected error occurred", "UNKNOWN_ERROR", requestID)
	if eh.environment == "development" {
		response.WithDetails("original_error", err.Error())
	}
	c.JSON(http.StatusInternalServerError, response)
}

// NoRoute answers unknown paths in the gateway's error format.
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.NewErrorResponse(models.ErrorTypeNotFound, "Route not found", "ROUTE_NOT_FOUND", c.GetString("request_id")))
}
