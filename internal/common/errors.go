package common

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatusFromGRPC maps an error carrying a gRPC status to the closest HTTP
// status code. ok is false when err carries no status.
func HTTPStatusFromGRPC(err error) (code int, ok bool) {
	st, ok := status.FromError(err)
	if !ok || st == nil {
		return 0, false
	}
	switch st.Code() {
	case codes.OK:
		return http.StatusOK, true
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest, true
	case codes.Unauthenticated:
		return http.StatusUnauthorized, true
	case codes.PermissionDenied:
		return http.StatusForbidden, true
	case codes.NotFound:
		return http.StatusNotFound, true
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict, true
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests, true
	case codes.Canceled:
		return 499, true
	case codes.Unimplemented:
		return http.StatusNotImplemented, true
	case codes.Unavailable:
		return http.StatusServiceUnavailable, true
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout, true
	default:
		return http.StatusInternalServerError, true
	}
}
