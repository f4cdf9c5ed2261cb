package api

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/steemit/blogd/internal/db"
)

// Application JSON-RPC error codes
const (
	ErrServerError = -32000
	ErrNotFound    = -32001
	ErrConflict    = -32002
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// classify maps a method error to the code and message sent to the client.
// Unexpected errors are reported without their internal detail.
func classify(err error) (int, string) {
	var apiErr *Error
	var verrs validation.Errors
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code, apiErr.Message
	case errors.Is(err, db.ErrPostNotFound):
		return ErrNotFound, err.Error()
	case errors.Is(err, db.ErrDuplicateTitle):
		return ErrConflict, err.Error()
	case errors.Is(err, db.ErrInvalidStatus):
		return ErrInvalidParams, err.Error()
	case errors.As(err, &verrs):
		return ErrInvalidParams, verrs.Error()
	default:
		return ErrServerError, "Server error"
	}
}
