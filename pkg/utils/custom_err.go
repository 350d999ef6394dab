package utils

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrQuotaExceeded     = errors.New("daily transformation quota exceeded")
	ErrGenerationFailed  = errors.New("image generation failed")
	ErrNotFound          = errors.New("record not found")
	ErrStorage           = errors.New("storage unavailable")
	ErrDatabaseError     = errors.New("database error")
	ErrInvalidTransition = errors.New("invalid subscription status transition")
	ErrStaleEvent        = errors.New("stale billing event")
	ErrUnauthorized      = errors.New("unauthorized")

	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPage        = errors.New("invalid page parameter")
	ErrInvalidPageSize    = errors.New("invalid page size parameter")
)

// QuotaExceededError carries the quota snapshot that caused the rejection.
type QuotaExceededError struct {
	Remaining int
	Limit     int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily transformation quota exceeded (remaining=%d, limit=%d)", e.Remaining, e.Limit)
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// GenerationFailedError wraps the last provider error once retries and
// fallbacks are exhausted.
type GenerationFailedError struct {
	Attempts int
	Cause    error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("image generation failed after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *GenerationFailedError) Is(target error) bool { return target == ErrGenerationFailed }

func (e *GenerationFailedError) Unwrap() error { return e.Cause }

// InvalidRequest returns an ErrInvalidRequest carrying a user-facing reason.
func InvalidRequest(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
}

// StorageError marks err as an object-storage or store outage.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
