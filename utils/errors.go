package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the "code" field of the error envelope
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeOrderNotFound     = "ORDER_NOT_FOUND"
	CodeDocumentNotFound  = "DOCUMENT_NOT_FOUND"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeServiceNotFound   = "SERVICE_NOT_FOUND"
	CodeUserExists        = "USER_EXISTS"
	CodeVersionConflict   = "VERSION_CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeEmptyMessage      = "EMPTY_MESSAGE"
	CodePartialFailure    = "PARTIAL_FAILURE"
	CodeRateLimited       = "RATE_LIMITED"
	CodeConfirmation      = "CONFIRMATION_REQUIRED"
	CodeStorage           = "STORAGE_ERROR"
	CodeDatabase          = "DATABASE_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

// AppError is an error that knows how it should be reported over HTTP
type AppError struct {
	Code    string
	Message string
	Status  int
	Details interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches extra context rendered under "details"
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func ValidationError(message string, err error) *AppError {
	return NewAppError(CodeValidation, message, http.StatusBadRequest, err)
}

func Unauthorized(message string) *AppError {
	return NewAppError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func Forbidden(message string) *AppError {
	return NewAppError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NotFound builds a 404 with a resource specific code such as ORDER_NOT_FOUND
func NotFound(code, resource string, err error) *AppError {
	return NewAppError(code, fmt.Sprintf("%s not found", resource), http.StatusNotFound, err)
}

func Conflict(code, message string, err error) *AppError {
	return NewAppError(code, message, http.StatusConflict, err)
}

func TooManyRequests(message string) *AppError {
	return NewAppError(CodeRateLimited, message, http.StatusTooManyRequests, nil)
}

func Internal(code, message string, err error) *AppError {
	if code == "" {
		code = CodeInternal
	}
	return NewAppError(code, message, http.StatusInternalServerError, err)
}

// FromFileError turns an upload validation failure into a 400
func FromFileError(err *FileUploadError) *AppError {
	return NewAppError(err.Code, err.Message, http.StatusBadRequest, err)
}

// AsAppError unwraps err into an *AppError, wrapping unknown errors as internal errors
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var fileErr *FileUploadError
	if errors.As(err, &fileErr) {
		return FromFileError(fileErr)
	}
	return Internal(CodeInternal, "An unexpected error occurred", err)
}

// IsCode reports whether err is an *AppError carrying code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
