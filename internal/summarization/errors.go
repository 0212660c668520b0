package summarization

import "errors"

// Common errors returned by Gateway implementations
var (
	// ErrServiceUnavailable is returned when the ML service answers with a non-2xx status
	// or cannot be reached.
	ErrServiceUnavailable = errors.New("ML service unavailable")

	// ErrInvalidResponse is returned when the ML service response cannot be decoded
	ErrInvalidResponse = errors.New("invalid response from ML service")

	// ErrEmptySummary is returned when a 2xx response carries no summary
	ErrEmptySummary = errors.New("ML service returned no summary")

	// ErrTimeout is returned when a call exceeds its deadline
	ErrTimeout = errors.New("ML service call timed out")

	// ErrInvalidConfig is returned when the gateway configuration is invalid
	ErrInvalidConfig = errors.New("invalid ML gateway configuration")
)
