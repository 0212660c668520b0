package domain

import (
	"errors"
	"fmt"
	"time"
)

// SummaryStatus represents the summarization state of a post.
type SummaryStatus string

// Possible summary status values. They match the Postgres enum labels.
const (
	SummaryStatusPending   SummaryStatus = "PENDING"
	SummaryStatusCompleted SummaryStatus = "COMPLETED"
)

// Common validation errors for Post
var (
	ErrEmptyPostTitle = errors.New("post title cannot be empty")
	ErrEmptyPostBody  = errors.New("post body cannot be empty")
)

// Post is a blog post together with its machine-generated summary.
// Summary is nil until a summarization job completes.
type Post struct {
	ID            int64         `json:"id"`
	Title         string        `json:"title"`
	Body          string        `json:"body"`
	Summary       *string       `json:"summary"`
	SummaryStatus SummaryStatus `json:"summaryStatus"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// NewPost creates a post awaiting summarization.
func NewPost(title, body string) (*Post, error) {
	now := time.Now().UTC()
	post := &Post{
		Title:         title,
		Body:          body,
		SummaryStatus: SummaryStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := post.Validate(); err != nil {
		return nil, err
	}

	return post, nil
}

// Validate checks if the Post has valid data.
// ID is not checked because it is assigned by the store.
func (p *Post) Validate() error {
	if p.Title == "" {
		return ErrEmptyPostTitle
	}

	if p.Body == "" {
		return ErrEmptyPostBody
	}

	if !IsValidSummaryStatus(p.SummaryStatus) {
		return fmt.Errorf("%w: %q", ErrInvalidSummaryStatus, p.SummaryStatus)
	}

	return nil
}

// SummaryText is the text submitted for summarization.
func (p *Post) SummaryText() string {
	return p.Body
}

// ContentChanged reports whether title or body differ from the post's
// current values. Only content changes require a new summary.
func (p *Post) ContentChanged(title, body string) bool {
	return p.Title != title || p.Body != body
}

// IsValidSummaryStatus checks if the given status is a valid SummaryStatus.
func IsValidSummaryStatus(status SummaryStatus) bool {
	switch status {
	case SummaryStatusPending, SummaryStatusCompleted:
		return true
	default:
		return false
	}
}
