package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blogapp/summarizer/internal/domain"
	"github.com/blogapp/summarizer/internal/events"
	"github.com/blogapp/summarizer/internal/store"
)

// PostService provides the post writes that feed the summarization pipeline.
type PostService interface {
	// CreatePost stores a new PENDING post and requests its summary.
	CreatePost(ctx context.Context, title, body string) (*domain.Post, error)

	// UpdatePost replaces title and body. The summary is reset to PENDING and
	// requested again only when the content actually changed.
	UpdatePost(ctx context.Context, id int64, title, body string) (*domain.Post, error)

	// ResummarizePost marks an existing post PENDING and requests a new summary.
	ResummarizePost(ctx context.Context, id int64) (*domain.Post, error)

	// ResummarizePending requests a summary for up to limit PENDING posts and
	// returns how many were requested.
	ResummarizePending(ctx context.Context, limit int) (int, error)
}

// PostServiceError wraps errors from the post service with context.
type PostServiceError struct {
	// Operation is the operation that failed (e.g., "create_post")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for PostServiceError.
func (e *PostServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("post service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("post service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *PostServiceError) Unwrap() error {
	return e.Err
}

// NewPostServiceError creates a PostServiceError. Known sentinel errors are
// returned as their service-level equivalent instead of being wrapped.
func NewPostServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrPostNotFound), store.IsNotFoundError(err):
		return ErrPostNotFound
	case errors.Is(err, ErrInvalidPost):
		return err
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrEmptyPostTitle),
		errors.Is(err, domain.ErrEmptyPostBody):
		return fmt.Errorf("%w: %w", ErrInvalidPost, err)
	}

	return &PostServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

type postServiceImpl struct {
	db      *sql.DB
	posts   store.PostStore
	emitter events.EventEmitter
	logger  *slog.Logger
}

// NewPostService creates a PostService.
// It returns an error if any of the required dependencies are nil.
func NewPostService(
	db *sql.DB,
	posts store.PostStore,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (PostService, error) {
	if db == nil {
		return nil, &PostServiceError{Operation: "create_service", Message: "db cannot be nil"}
	}
	if posts == nil {
		return nil, &PostServiceError{Operation: "create_service", Message: "posts cannot be nil"}
	}
	if emitter == nil {
		return nil, &PostServiceError{Operation: "create_service", Message: "emitter cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &postServiceImpl{
		db:      db,
		posts:   posts,
		emitter: emitter,
		logger:  logger.With("component", "post_service"),
	}, nil
}

// CreatePost implements PostService.CreatePost
func (s *postServiceImpl) CreatePost(ctx context.Context, title, body string) (*domain.Post, error) {
	post, err := domain.NewPost(title, body)
	if err != nil {
		return nil, NewPostServiceError("create_post", "invalid post", err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.posts.WithTx(tx).Create(ctx, post)
	})
	if err != nil {
		s.logger.Error("failed to create post", "error", err)
		return nil, NewPostServiceError("create_post", "failed to save post", err)
	}

	s.requestSummary(ctx, post, events.MutationCreate)
	return post, nil
}

// UpdatePost implements PostService.UpdatePost
func (s *postServiceImpl) UpdatePost(ctx context.Context, id int64, title, body string) (*domain.Post, error) {
	if title == "" {
		return nil, NewPostServiceError("update_post", "invalid post", domain.ErrEmptyPostTitle)
	}
	if body == "" {
		return nil, NewPostServiceError("update_post", "invalid post", domain.ErrEmptyPostBody)
	}

	var (
		post    *domain.Post
		changed bool
	)
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txPosts := s.posts.WithTx(tx)

		current, err := txPosts.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if !current.ContentChanged(title, body) {
			post = current
			return nil
		}

		if err := txPosts.UpdateContent(ctx, id, title, body); err != nil {
			return err
		}
		changed = true

		post, err = txPosts.GetByID(ctx, id)
		return err
	})
	if err != nil {
		if !store.IsNotFoundError(err) {
			s.logger.Error("failed to update post", "error", err, "post_id", id)
		}
		return nil, NewPostServiceError("update_post", "failed to update post", err)
	}

	if !changed {
		s.logger.Debug("post content unchanged, keeping summary", "post_id", id)
		return post, nil
	}

	s.requestSummary(ctx, post, events.MutationUpdate)
	return post, nil
}

// ResummarizePost implements PostService.ResummarizePost
func (s *postServiceImpl) ResummarizePost(ctx context.Context, id int64) (*domain.Post, error) {
	var post *domain.Post
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txPosts := s.posts.WithTx(tx)
		if err := txPosts.MarkPending(ctx, id); err != nil {
			return err
		}
		var err error
		post, err = txPosts.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, NewPostServiceError("resummarize_post", "failed to reset post", err)
	}

	s.requestSummary(ctx, post, events.MutationUpdate)
	return post, nil
}

// ResummarizePending implements PostService.ResummarizePending
func (s *postServiceImpl) ResummarizePending(ctx context.Context, limit int) (int, error) {
	ids, err := s.posts.ListPendingIDs(ctx, limit)
	if err != nil {
		return 0, NewPostServiceError("resummarize_pending", "failed to list pending posts", err)
	}

	requested := 0
	for _, id := range ids {
		post, err := s.posts.GetByID(ctx, id)
		if err != nil {
			// deleted since listing
			s.logger.Warn("skipping pending post", "post_id", id, "error", err)
			continue
		}
		s.requestSummary(ctx, post, events.MutationUpdate)
		requested++
	}

	s.logger.Info("requested summaries for pending posts", "count", requested)
	return requested, nil
}

// requestSummary emits the mutation event. Failures are logged only: the
// post is already stored as PENDING.
func (s *postServiceImpl) requestSummary(ctx context.Context, post *domain.Post, kind events.MutationKind) {
	event, err := events.NewPostMutatedEvent(post.ID, post.SummaryText(), kind)
	if err != nil {
		s.logger.Error("failed to build post event", "error", err, "post_id", post.ID)
		return
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.logger.Error("failed to emit post event",
			"error", err,
			"post_id", post.ID,
			"event_id", event.ID)
	}
}
