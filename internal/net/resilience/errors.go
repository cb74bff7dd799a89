package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
)

var (
	// ErrCircuitOpen is surfaced while the breaker is failing fast.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrBulkheadRejected is surfaced when the in-flight and queued call
	// budget is exhausted.
	ErrBulkheadRejected = errors.New("bulkhead rejected call")
	// ErrTimeout is surfaced when the envelope deadline expires.
	ErrTimeout = errors.New("call timed out")
)

// StatusError is a non-2xx upstream response. Adapters construct it so the
// envelope can decide retryability from the status code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body)
}

// Category buckets an envelope error for logging and health output.
type Category string

const (
	CategoryCircuitOpen  Category = "circuit_open"
	CategoryTimeout      Category = "timeout"
	CategoryBulkheadFull Category = "bulkhead_full"
	CategoryAPIError     Category = "api_error"
	CategoryUnknown      Category = "unknown"
)

// Classification is the envelope's verdict on an error.
type Classification struct {
	Category  Category
	Retryable bool
	Message   string
}

// Classify maps err to its resilience category. Errors wrapped with
// backoff.Permanent never retry; adapters use that for rejected
// credentials, invalidated tokens, and self-disable. Unknown errors are
// treated as retryable network-level failures.
func Classify(err error) Classification {
	switch {
	case err == nil:
		return Classification{Category: CategoryUnknown, Retryable: false}
	case errors.Is(err, ErrCircuitOpen):
		return Classification{Category: CategoryCircuitOpen, Retryable: false, Message: err.Error()}
	case errors.Is(err, ErrBulkheadRejected):
		return Classification{Category: CategoryBulkheadFull, Retryable: false, Message: err.Error()}
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return Classification{Category: CategoryTimeout, Retryable: true, Message: err.Error()}
	}
	var pe *backoff.PermanentError
	if errors.As(err, &pe) {
		return Classification{Category: CategoryAPIError, Retryable: false, Message: err.Error()}
	}
	var se *StatusError
	if errors.As(err, &se) {
		return Classification{
			Category:  CategoryAPIError,
			Retryable: se.Code == 429 || se.Code >= 500,
			Message:   err.Error(),
		}
	}
	return Classification{Category: CategoryUnknown, Retryable: true, Message: err.Error()}
}
