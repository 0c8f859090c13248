package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"vroom/internal/core/domain"
)

// ErrorCode identifies an application error class across the HTTP API and the
// session channel.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeRoomFull     ErrorCode = "ROOM_FULL"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeNotLive      ErrorCode = "NOT_LIVE"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError is an application error with an HTTP status mapping.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Cause: err}
}

func NewInvalidInputError(message string) *AppError {
	return New(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewForbiddenError(message string) *AppError {
	return New(ErrCodeForbidden, message, http.StatusForbidden)
}

func NewConflictError(message string) *AppError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

func NewRateLimitError() *AppError {
	return New(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return New(ErrCodeInternal, message, http.StatusInternalServerError)
}

// FromDomain maps a domain sentinel error onto its AppError. Unknown errors
// map to an internal error with the original as cause.
func FromDomain(err error) *AppError {
	switch {
	case stderrors.Is(err, domain.ErrRoomNotFound):
		return Wrap(err, ErrCodeNotFound, "room not found", http.StatusNotFound)
	case stderrors.Is(err, domain.ErrAssetNotFound):
		return Wrap(err, ErrCodeNotFound, "asset not found", http.StatusNotFound)
	case stderrors.Is(err, domain.ErrStreamNotFound):
		return Wrap(err, ErrCodeNotFound, "livestream not found", http.StatusNotFound)
	case stderrors.Is(err, domain.ErrRoomFull):
		return Wrap(err, ErrCodeRoomFull, "room is at capacity", http.StatusConflict)
	case stderrors.Is(err, domain.ErrRoomClosed):
		return Wrap(err, ErrCodeForbidden, "room is closed", http.StatusForbidden)
	case stderrors.Is(err, domain.ErrForbidden):
		return Wrap(err, ErrCodeForbidden, "permission denied", http.StatusForbidden)
	case stderrors.Is(err, domain.ErrNotMember):
		return Wrap(err, ErrCodeForbidden, "not a member of this room", http.StatusForbidden)
	case stderrors.Is(err, domain.ErrStreamConflict):
		return Wrap(err, ErrCodeConflict, "room already has an active livestream", http.StatusConflict)
	case stderrors.Is(err, domain.ErrStreamNotLive):
		return Wrap(err, ErrCodeNotLive, "livestream has ended", http.StatusGone)
	default:
		return Wrap(err, ErrCodeInternal, "internal error", http.StatusInternalServerError)
	}
}

// GetAppError extracts an AppError from an error chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
