package store

import (
	"context"
	"database/sql"

	"github.com/blogapp/summarizer/internal/domain"
)

// PostStore defines the persistence operations the summarization pipeline
// needs on blog posts.
// Version: 1.0
type PostStore interface {
	// Create saves a new post and assigns its ID.
	// Returns ErrInvalidEntity wrapping the domain error if the post is invalid.
	Create(ctx context.Context, post *domain.Post) error

	// GetByID retrieves a post by its ID.
	// Returns ErrPostNotFound if the post does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Post, error)

	// UpdateContent replaces title and body and resets the summary status to PENDING.
	// Returns ErrPostNotFound if the post does not exist.
	UpdateContent(ctx context.Context, id int64, title, body string) error

	// MarkCompleted stores the summary and sets the status to COMPLETED.
	// Writing the same summary twice has the same effect as writing it once.
	// Returns ErrPostNotFound if the post does not exist.
	MarkCompleted(ctx context.Context, id int64, summary string) error

	// MarkPending sets the status to PENDING and leaves any existing summary in place.
	// Returns ErrPostNotFound if the post does not exist.
	MarkPending(ctx context.Context, id int64) error

	// ListPendingIDs returns the IDs of posts whose summary is PENDING, oldest first.
	ListPendingIDs(ctx context.Context, limit int) ([]int64, error)

	// CountByStatus returns the number of posts per summary status.
	// Statuses with no posts are present with a zero count.
	CountByStatus(ctx context.Context) (map[domain.SummaryStatus]int64, error)

	// WithTx returns a PostStore that runs its queries in tx.
	WithTx(tx *sql.Tx) PostStore
}
