package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to API clients.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeNotAvailable        = "NOT_AVAILABLE"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeAuthorizationDenied = "AUTHORIZATION_DENIED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeConflict            = "CONFLICT"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details string            `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewFieldValidationError reports every violated field at once.
func NewFieldValidationError(fields map[string]string) *AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return &AppError{
		Code:    CodeValidation,
		Message: "invalid fields: " + strings.Join(names, ", "),
		Fields:  fields,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewAuthorizationDeniedError is returned when the moderation gate refuses an action.
func NewAuthorizationDeniedError(action string) *AppError {
	return &AppError{
		Code:    CodeAuthorizationDenied,
		Message: fmt.Sprintf("not allowed to %s", action),
	}
}

// NewNotAvailableError is returned for entities that exist but cannot be used right now.
func NewNotAvailableError(message string) *AppError {
	return &AppError{
		Code:    CodeNotAvailable,
		Message: message,
	}
}

// NewInvalidTransitionError is returned when a state machine precondition fails.
func NewInvalidTransitionError(from SubmissionStatus, to SubmissionStatus) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot move submission from %s to %s", from, to),
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ErrorCodeLocal is the fiber local holding the code of the error a request
// answered with, for middleware that runs after the handler.
const ErrorCodeLocal = "errorCode"

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error:  appErr.Message,
			Code:   appErr.Code,
			Fields: appErr.Fields,
		}
		if appErr.Err != nil && status < fiber.StatusInternalServerError {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	if response.Code != "" {
		c.Locals(ErrorCodeLocal, response.Code)
	}
	return c.Status(status).JSON(response)
}
