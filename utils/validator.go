package utils

import (
	"fmt"
	"strings"

	"rescuelink/models"

	"github.com/go-playground/validator/v10"
)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func NewValidationService() *ValidationService {
	v := validator.New()

	// Register custom validators
	v.RegisterValidation("coordinate_lat", validateLatitude)
	v.RegisterValidation("coordinate_lng", validateLongitude)
	v.RegisterValidation("emergency_status", validateEmergencyStatus)
	v.RegisterValidation("mission_status", validateMissionStatus)
	v.RegisterValidation("user_role", validateUserRole)

	return &ValidationService{
		validator: v,
	}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := vs.validator.Struct(s)
	if err != nil {
		fieldErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return []ValidationError{{Message: err.Error()}}
		}
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fe.Field(),
				Tag:     fe.Tag(),
				Value:   fmt.Sprintf("%v", fe.Value()),
				Message: vs.getErrorMessage(fe),
			})
		}
	}

	return validationErrors
}

// Validate wraps ValidateStruct into a single VALIDATION_ERROR.
func (vs *ValidationService) Validate(s interface{}) error {
	errs := vs.ValidateStruct(s)
	if len(errs) == 0 {
		return nil
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Message)
	}
	return ServiceError{
		Code:       ErrCodeValidation,
		Message:    "Validation failed",
		Details:    strings.Join(messages, "; "),
		StatusCode: 400,
	}
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	case "coordinate_lat", "coordinate_lng":
		return "Invalid coordinate value"
	case "emergency_status":
		return "Invalid emergency status"
	case "mission_status":
		return "Invalid mission status"
	case "user_role":
		return "Invalid user role"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// Custom validation functions
func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

func validateLongitude(fl validator.FieldLevel) bool {
	lng := fl.Field().Float()
	return lng >= -180 && lng <= 180
}

func validateEmergencyStatus(fl validator.FieldLevel) bool {
	return models.EmergencyStatus(fl.Field().String()).Valid()
}

func validateMissionStatus(fl validator.FieldLevel) bool {
	return models.MissionStatus(fl.Field().String()).Valid()
}

func validateUserRole(fl validator.FieldLevel) bool {
	return models.NormalizeRole(fl.Field().String()).Valid()
}
