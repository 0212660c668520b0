// Package summarization defines the boundary between the summarization
// pipeline and the remote ML service that turns post text into a summary.
// Implementations live under internal/platform.
package summarization
