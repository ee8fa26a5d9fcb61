package services

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeValidation        ErrorCode = "validation_error"
	CodeNotFound          ErrorCode = "not_found"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeForbidden         ErrorCode = "forbidden"
	CodeConflict          ErrorCode = "conflict"
	CodeInvalidTransition ErrorCode = "invalid_transition"
	CodeDownstream        ErrorCode = "downstream_error"
	CodeUnavailable       ErrorCode = "service_unavailable"
	CodeInternal          ErrorCode = "internal_error"
)

// AppError is the error type every service returns for expected failures.
type AppError struct {
	Code     ErrorCode         `json:"error"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	HTTPCode int               `json:"-"`
	Err      error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code ErrorCode, httpCode int, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPCode: httpCode}
}

func ValidationError(message string, fields map[string]string) *AppError {
	err := newAppError(CodeValidation, http.StatusBadRequest, message)
	err.Fields = fields
	return err
}

// FieldError is a validation error about a single field.
func FieldError(field, message string) *AppError {
	return ValidationError("Invalid data", map[string]string{field: message})
}

func NotFound(what string) *AppError {
	return newAppError(CodeNotFound, http.StatusNotFound, what+" not found")
}

func Unauthorized(message string) *AppError {
	return newAppError(CodeUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return newAppError(CodeForbidden, http.StatusForbidden, message)
}

func Conflict(message string) *AppError {
	return newAppError(CodeConflict, http.StatusConflict, message)
}

func InvalidTransition(from, to string) *AppError {
	return newAppError(CodeInvalidTransition, http.StatusConflict,
		fmt.Sprintf("cannot move intervention from %s to %s", from, to))
}

// Downstream wraps a storage or gateway failure. The cause is logged, never returned to clients.
func Downstream(message string, cause error) *AppError {
	err := newAppError(CodeDownstream, http.StatusInternalServerError, message)
	err.Err = cause
	return err
}

func Unavailable(message string) *AppError {
	return newAppError(CodeUnavailable, http.StatusServiceUnavailable, message)
}

// AsAppError extracts an *AppError from an error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the error code, CodeInternal for foreign errors and "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternal
}
