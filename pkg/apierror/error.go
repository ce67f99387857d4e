package apierror

import (
	"encoding/json"
	"errors"
	"net/http"

	"household-inventory-api/internal/model"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// WithDetails attaches a details payload.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// ToJSON converts the error to the failure envelope.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(struct {
		Success bool   `json:"success"`
		Error   *Error `json:"error"`
	}{Error: e})
	return data
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
	}
}

// ValidationError creates a 400 error with field details.
func ValidationError(message string, details ...FieldError) *Error {
	e := &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Message:    message,
	}
	if len(details) > 0 {
		e.Details = details
	}
	return e
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Member identification required"
	}
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return &Error{
		StatusCode: http.StatusForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
	}
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    message,
	}
}

// InsufficientStock creates a 409 error describing what was short.
func InsufficientStock(message string, details interface{}) *Error {
	return &Error{
		StatusCode: http.StatusConflict,
		Code:       "INSUFFICIENT_STOCK",
		Message:    message,
		Details:    details,
	}
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
	}
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    message,
	}
}

type shortfall struct {
	ItemID    string  `json:"item_id"`
	Requested float64 `json:"requested"`
	Available float64 `json:"available"`
	Shortfall float64 `json:"shortfall"`
}

// FromError maps engine error kinds to API errors. Dependency and unknown failures
// become a generic 500 so storage details never reach the client.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var (
		validation *model.ValidationError
		stock      *model.InsufficientStockError
		shortage   *model.ShortageError
	)
	switch {
	case errors.As(err, &validation):
		return ValidationError(err.Error(), FieldError{Field: validation.Field, Message: validation.Message})
	case errors.Is(err, model.ErrValidation):
		return ValidationError(err.Error())
	case errors.Is(err, model.ErrPermissionDenied):
		return Forbidden(err.Error())
	case errors.Is(err, model.ErrNotFound):
		return NotFound(err.Error())
	case errors.As(err, &shortage):
		return InsufficientStock(err.Error(), shortage.Shortages)
	case errors.As(err, &stock):
		return InsufficientStock(err.Error(), shortfall{
			ItemID:    stock.ItemID,
			Requested: stock.Requested,
			Available: stock.Available,
			Shortfall: stock.Shortfall(),
		})
	case errors.Is(err, model.ErrInsufficientStock):
		return InsufficientStock(err.Error(), nil)
	default:
		return InternalError("")
	}
}
