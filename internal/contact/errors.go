package contact

import (
	"errors"
	"fmt"
	"net/http"

	"authorities/internal/models"
)

// Sentinels matched with errors.Is against any *ServiceError.
var (
	ErrRateLimited      = errors.New("rate limited")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ServiceError represents errors from the contact service with HTTP context.
// Message is safe to show to callers; Err carries internal detail for logs.
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error

	kind error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return errors.Join(e.kind, e.Err)
}

// Error constructors for common service errors

func NewRateLimitedError(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeRateLimitExceeded,
		Message:    fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %s.", limit, window),
		StatusCode: http.StatusTooManyRequests,
		kind:       ErrRateLimited,
	}
}

func NewInvalidInputError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidInput,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
		kind:       ErrInvalidInput,
	}
}

func NewStoreUnavailableError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeStoreUnavailable,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
		kind:       ErrStoreUnavailable,
	}
}

// AsServiceError extracts a *ServiceError from err.
func AsServiceError(err error) (*ServiceError, bool) {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return nil, false
}
