package response

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST     ErrCode = "REQUEST_FAILED"
	BAD_REQUEST        ErrCode = "FAILED_TO_DECODE"
	VALIDATION         ErrCode = "VALIDATION_ERROR"
	NOT_FOUND          ErrCode = "NOT_FOUND"
	METHOD_NOT_ALLOWED ErrCode = "METHOD_NOT_ALLOWED"
	LOCKED             ErrCode = "LOCKED"
	SLOT_CONFLICT      ErrCode = "SLOT_CONFLICT"
	UNAUTHORIZED       ErrCode = "UNAUTHORIZED"
	FORBIDDEN          ErrCode = "FORBIDDEN"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("resource not found")
	ErrLocked       = errors.New("resource is locked")
	ErrSlotConflict = errors.New("slot is already allocated")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

func Error(code ErrCode, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    string(code),
			Message: msg,
		},
	}
}

// Invalid wraps ErrValidation with a caller-facing message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ValidationMessage strips the sentinel prefix so only the field message
// reaches the client.
func ValidationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(ErrValidation.Error())+2:]
	}
	return msg
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsg []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' is required", err.Field()))
		case "min":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must be at least %s", err.Field(), err.Param()))
		case "max":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must be at most %s", err.Field(), err.Param()))
		default:
			errMsg = append(errMsg, fmt.Sprintf("field '%s' is invalid", err.Field()))
		}
	}

	return Error(VALIDATION, strings.Join(errMsg, ", "))
}
