package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"power-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type PowerObserverError struct {
	Message string
	Cause   error
}

func (e *PowerObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PowerObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As
type ClientInputError struct{ PowerObserverError }
type UpstreamUnavailableError struct{ PowerObserverError }
type DataShapeError struct{ PowerObserverError }
type ClassificationError struct{ PowerObserverError }
type CacheError struct{ PowerObserverError }
type ConfigurationError struct{ PowerObserverError }
type DatabaseError struct{ PowerObserverError }

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewClientInputError(format string, args ...interface{}) error {
	return &ClientInputError{PowerObserverError{Message: fmt.Sprintf(format, args...)}}
}

func NewUpstreamUnavailableError(message string, cause error) error {
	return &UpstreamUnavailableError{PowerObserverError{Message: message, Cause: cause}}
}

func NewDataShapeError(message string, cause error) error {
	return &DataShapeError{PowerObserverError{Message: message, Cause: cause}}
}

func NewClassificationError(message string, cause error) error {
	return &ClassificationError{PowerObserverError{Message: message, Cause: cause}}
}

func NewCacheError(message string, cause error) error {
	return &CacheError{PowerObserverError{Message: message, Cause: cause}}
}

func NewConfigurationError(message string, cause error) error {
	return &ConfigurationError{PowerObserverError{Message: message, Cause: cause}}
}

func NewDatabaseError(message string, cause error) error {
	return &DatabaseError{PowerObserverError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Classification helpers
// -----------------------------------------------------------------------------

func IsClientInput(err error) bool {
	var target *ClientInputError
	return errors.As(err, &target)
}

func IsUpstreamUnavailable(err error) bool {
	var target *UpstreamUnavailableError
	return errors.As(err, &target)
}

func IsDataShape(err error) bool {
	var target *DataShapeError
	return errors.As(err, &target)
}

func IsCacheError(err error) bool {
	var target *CacheError
	return errors.As(err, &target)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times with exponential backoff.
// It stops early when ctx is done or fn returns a ClientInputError.
func RetryWithBackoff[T any](ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}

		lastErr = err
		if IsClientInput(err) || attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err())
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("%s failed: %w", operation, lastErr)
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler logs errors from background loops and counts consecutive failures.
type ErrorHandler struct {
	Logger     *logger.Logger
	ErrorCount int
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{Logger: log}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.ErrorCount = 0
}

// -----------------------------------------------------------------------------

// Handle logs err with the stage it happened in. Returns true if err was non-nil.
func (e *ErrorHandler) Handle(err error, context string) bool {
	if err == nil {
		if e.ErrorCount > 0 {
			e.ErrorCount--
		}
		return false
	}
	e.ErrorCount++
	e.Logger.Error("Error in %s: %v (consecutive=%d)", context, err, e.ErrorCount)
	return true
}
