package helpers

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type DashboardError struct {
	Message string
	Cause   error
}

func (e *DashboardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DashboardError) Unwrap() error {
	return e.Cause
}

// Distinct error types so callers can pick a status code per failure class
type ScrapeError struct{ DashboardError }
type ParseError struct{ DashboardError }
type StorageError struct{ DashboardError }
type ValidationError struct{ DashboardError }

// -----------------------------------------------------------------------------

func NewScrapeError(message string, cause error) *ScrapeError {
	return &ScrapeError{DashboardError{Message: message, Cause: cause}}
}

func NewParseError(message string, cause error) *ParseError {
	return &ParseError{DashboardError{Message: message, Cause: cause}}
}

func NewStorageError(message string, cause error) *StorageError {
	return &StorageError{DashboardError{Message: message, Cause: cause}}
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{DashboardError{Message: message}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times
// with exponential backoff.
func RetryWithBackoff(maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		time.Sleep(baseDelay * (1 << attempt))
	}

	return lastErr
}
