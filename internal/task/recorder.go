package task

import (
	"context"
	"log/slog"

	"github.com/blogapp/summarizer/internal/platform/logger"
	"github.com/blogapp/summarizer/internal/redact"
	"github.com/blogapp/summarizer/internal/store"
)

// ResultStore is the subset of the post store the consumer writes to.
type ResultStore interface {
	MarkCompleted(ctx context.Context, id int64, summary string) error
	MarkPending(ctx context.Context, id int64) error
}

// ResultRecorder writes job outcomes to the ResultStore.
// Failures are logged and swallowed; they never retry and never reach the caller.
type ResultRecorder struct {
	store  ResultStore
	logger *slog.Logger
}

// NewResultRecorder wraps store.
func NewResultRecorder(store ResultStore, logger *slog.Logger) *ResultRecorder {
	if store == nil {
		panic("result store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultRecorder{
		store:  store,
		logger: logger.With(slog.String("component", "result_recorder")),
	}
}

// Completed stores the summary and marks the post COMPLETED.
func (r *ResultRecorder) Completed(ctx context.Context, postID int64, summary string) {
	if err := r.store.MarkCompleted(ctx, postID, summary); err != nil {
		r.logFailure(ctx, "failed to store summary", postID, err)
	}
}

// Pending marks the post PENDING.
func (r *ResultRecorder) Pending(ctx context.Context, postID int64) {
	if err := r.store.MarkPending(ctx, postID); err != nil {
		r.logFailure(ctx, "failed to mark post pending", postID, err)
	}
}

// logFailure logs a deleted post at WARN; anything else is an ERROR.
func (r *ResultRecorder) logFailure(ctx context.Context, msg string, postID int64, err error) {
	log := logger.FromContextOrDefault(ctx, r.logger)
	if store.IsNotFoundError(err) {
		log.Warn("post no longer exists, result dropped",
			slog.Int64("post_id", postID))
		return
	}
	log.Error(msg,
		slog.Int64("post_id", postID),
		slog.String("error", redact.Error(err)))
}
