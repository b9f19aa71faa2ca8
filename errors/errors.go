package errors

import "fmt"

// Application error types organized by category for better error handling

type ErrorType string

// Domain/Business Logic Errors - errors related to location resolution and scheduling
const (
	ValidationError ErrorType = "VALIDATION_ERROR"
	NotFoundError   ErrorType = "NOT_FOUND_ERROR"

	PermissionDeniedError   ErrorType = "PERMISSION_DENIED"
	ServicesDisabledError   ErrorType = "SERVICES_DISABLED"
	TimeoutError            ErrorType = "TIMEOUT"
	NoLocationError         ErrorType = "NO_LOCATION"
	GeocodeUnavailableError ErrorType = "GEOCODE_UNAVAILABLE"
)

// Infrastructure Errors - errors related to external systems and services
const (
	DatabaseError    ErrorType = "DATABASE_ERROR"
	ExternalAPIError ErrorType = "EXTERNAL_API_ERROR"
	NotifierError    ErrorType = "NOTIFIER_ERROR"
)

// System/Configuration Errors - errors related to system setup and configuration
const (
	ConfigurationError ErrorType = "CONFIGURATION_ERROR"
)

type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
	}
}

func Wrap(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == errorType
}

// Domain/Business Logic Error Constructors
func NewValidationError(message string) *AppError {
	return New(ValidationError, message)
}

func NewNotFoundError(message string) *AppError {
	return New(NotFoundError, message)
}

func NewPermissionDeniedError(message string) *AppError {
	return New(PermissionDeniedError, message)
}

func NewServicesDisabledError(message string) *AppError {
	return New(ServicesDisabledError, message)
}

func NewTimeoutError(message string, cause error) *AppError {
	return Wrap(TimeoutError, message, cause)
}

func NewNoLocationError(message string) *AppError {
	return New(NoLocationError, message)
}

func NewGeocodeUnavailableError(message string, cause error) *AppError {
	return Wrap(GeocodeUnavailableError, message, cause)
}

// Infrastructure Error Constructors
func NewDatabaseError(message string, cause error) *AppError {
	return Wrap(DatabaseError, message, cause)
}

func NewExternalAPIError(message string, cause error) *AppError {
	return Wrap(ExternalAPIError, message, cause)
}

func NewNotifierError(message string, cause error) *AppError {
	return Wrap(NotifierError, message, cause)
}

// System/Configuration Error Constructors
func NewConfigurationError(message string, cause error) *AppError {
	return Wrap(ConfigurationError, message, cause)
}
