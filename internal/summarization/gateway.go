package summarization

import "context"

// Gateway is the consumer's view of the remote ML service.
type Gateway interface {
	// Health probes the service and reports whether it is ready.
	// Any transport failure, timeout or non-2xx status reports false.
	Health(ctx context.Context) bool

	// Summarize returns a non-empty summary of text, or an error.
	// See errors.go for the error kinds.
	Summarize(ctx context.Context, text string) (string, error)
}
