package domain

import (
	"errors"
	"fmt"
)

// DefaultMaxJobAttempts is the number of times a job is tried before it is discarded.
const DefaultMaxJobAttempts = 3

// Validation errors for SummaryJob
var (
	ErrInvalidJobPostID  = errors.New("job post ID must be positive")
	ErrInvalidJobAttempt = errors.New("job attempt must be at least 1")
)

// SummaryJob is the envelope placed on the summarization queue.
// The JSON field names are shared with producers written in other languages.
type SummaryJob struct {
	PostID  int64  `json:"postId"`
	Text    string `json:"text"`
	Attempt int    `json:"attempt"`
}

// NewSummaryJob returns the first attempt of a job for the given post.
func NewSummaryJob(postID int64, text string) (SummaryJob, error) {
	job := SummaryJob{
		PostID:  postID,
		Text:    text,
		Attempt: 1,
	}

	if err := job.Validate(); err != nil {
		return SummaryJob{}, err
	}

	return job, nil
}

// Validate checks the envelope invariants.
func (j SummaryJob) Validate() error {
	if j.PostID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidJobPostID, j.PostID)
	}
	if j.Attempt < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidJobAttempt, j.Attempt)
	}
	return nil
}

// CanRetry reports whether another attempt is allowed under maxAttempts.
func (j SummaryJob) CanRetry(maxAttempts int) bool {
	return j.Attempt < maxAttempts
}

// Retry returns a copy of the job with the attempt counter advanced.
// The receiver is left unchanged.
func (j SummaryJob) Retry() SummaryJob {
	next := j
	next.Attempt++
	return next
}
