// Package apperror maps failures to HTTP-facing error codes.
package apperror

import (
	"errors"
	"net/http"

	"github.com/opsdeck/opsdeck/internal/domain"
)

type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Fields  map[string]string `json:"errors,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeValidation       = "VALIDATION"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeRateLimited      = "RATE_LIMITED"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeInternal         = "INTERNAL"
)

var (
	ErrUnauthorized = &AppError{Code: CodeUnauthorized, Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrRateLimited  = &AppError{Code: CodeRateLimited, Message: "Too many requests, try again later", Status: http.StatusTooManyRequests}
)

func NewBadRequest(message string) *AppError {
	return &AppError{Code: CodeBadRequest, Message: message, Status: http.StatusBadRequest}
}

func NewValidation(fields map[string]string) *AppError {
	return &AppError{Code: CodeValidation, Message: "Validation failed", Status: http.StatusUnprocessableEntity, Fields: fields}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

func NewForbidden(message string) *AppError {
	return &AppError{Code: CodePermissionDenied, Message: message, Status: http.StatusForbidden}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

func NewConflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message, Status: http.StatusConflict}
}

func NewInternal(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError}
}

// MapError classifies err. Unclassified errors keep their raw message.
func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return NewValidation(validationErr.Fields)
	}

	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return NewForbidden(err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		return NewUnauthorized(err.Error())
	case errors.Is(err, domain.ErrDocumentNotFound):
		return NewNotFound(err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		return NewConflict(err.Error())
	case errors.Is(err, domain.ErrInvalidPath), errors.Is(err, domain.ErrOrganizationRequired):
		return NewBadRequest(err.Error())
	case errors.Is(err, domain.ErrGenerationFailed), errors.Is(err, domain.ErrMalformedOutput):
		return &AppError{Code: CodeGenerationFailed, Message: domain.ErrGenerationFailed.Error(), Status: http.StatusBadGateway}
	default:
		return NewInternal(err.Error())
	}
}
