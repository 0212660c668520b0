package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blogapp/summarizer/internal/domain"
	"github.com/blogapp/summarizer/internal/platform/logger"
	"github.com/blogapp/summarizer/internal/store"
)

// PostgresPostStore implements the store.PostStore interface
// using a PostgreSQL database as the storage backend.
type PostgresPostStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPostStore creates a new PostgreSQL implementation of the PostStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresPostStore(db store.DBTX, logger *slog.Logger) *PostgresPostStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPostStore{
		db:     db,
		logger: logger.With(slog.String("component", "post_store")),
	}
}

// Ensure PostgresPostStore implements store.PostStore interface
var _ store.PostStore = (*PostgresPostStore)(nil)

// Create implements store.PostStore.Create
func (s *PostgresPostStore) Create(ctx context.Context, post *domain.Post) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := post.Validate(); err != nil {
		log.Warn("post validation failed during create", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO posts (title, body, summary, summary_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		post.Title,
		post.Body,
		post.Summary,
		string(post.SummaryStatus),
		post.CreatedAt,
		post.UpdatedAt,
	).Scan(&post.ID)
	if err != nil {
		log.Error("failed to create post", slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Info("post created successfully",
		slog.Int64("post_id", post.ID),
		slog.String("summary_status", string(post.SummaryStatus)))
	return nil
}

// GetByID implements store.PostStore.GetByID
func (s *PostgresPostStore) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, title, body, summary, summary_status, created_at, updated_at
		FROM posts
		WHERE id = $1
	`

	var (
		post    domain.Post
		summary sql.NullString
		status  string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID,
		&post.Title,
		&post.Body,
		&summary,
		&status,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("post not found", slog.Int64("post_id", id))
			return nil, store.ErrPostNotFound
		}
		log.Error("failed to get post", slog.Int64("post_id", id), slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if summary.Valid {
		post.Summary = &summary.String
	}
	post.SummaryStatus = domain.SummaryStatus(status)

	return &post, nil
}

// UpdateContent implements store.PostStore.UpdateContent
func (s *PostgresPostStore) UpdateContent(ctx context.Context, id int64, title, body string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if title == "" {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrEmptyPostTitle)
	}
	if body == "" {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrEmptyPostBody)
	}

	query := `
		UPDATE posts
		SET title = $1, body = $2, summary_status = 'PENDING', updated_at = NOW()
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, title, body, id)
	if err != nil {
		log.Error("failed to update post content", slog.Int64("post_id", id), slog.String("error", err.Error()))
		return updateError("update_content", "failed to update content", err)
	}

	if err := CheckRowsAffected(result, store.ErrPostNotFound); err != nil {
		return err
	}

	log.Debug("post content updated", slog.Int64("post_id", id))
	return nil
}

// MarkCompleted implements store.PostStore.MarkCompleted
func (s *PostgresPostStore) MarkCompleted(ctx context.Context, id int64, summary string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE posts
		SET summary = $1, summary_status = 'COMPLETED', updated_at = NOW()
		WHERE id = $2
	`
	result, err := s.db.ExecContext(ctx, query, summary, id)
	if err != nil {
		return updateError("mark_completed", "failed to store summary", err)
	}

	if err := CheckRowsAffected(result, store.ErrPostNotFound); err != nil {
		return err
	}

	log.Info("post summary completed",
		slog.Int64("post_id", id),
		slog.Int("summary_length", len(summary)))
	return nil
}

// MarkPending implements store.PostStore.MarkPending
func (s *PostgresPostStore) MarkPending(ctx context.Context, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE posts
		SET summary_status = 'PENDING', updated_at = NOW()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return updateError("mark_pending", "failed to reset summary status", err)
	}

	if err := CheckRowsAffected(result, store.ErrPostNotFound); err != nil {
		return err
	}

	log.Debug("post summary status set to pending", slog.Int64("post_id", id))
	return nil
}

// ListPendingIDs implements store.PostStore.ListPendingIDs
func (s *PostgresPostStore) ListPendingIDs(ctx context.Context, limit int) ([]int64, error) {
	query := `
		SELECT id
		FROM posts
		WHERE summary_status = 'PENDING'
		ORDER BY created_at ASC, id ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return ids, nil
}

// CountByStatus implements store.PostStore.CountByStatus
func (s *PostgresPostStore) CountByStatus(ctx context.Context) (map[domain.SummaryStatus]int64, error) {
	query := `
		SELECT summary_status, COUNT(*)
		FROM posts
		GROUP BY summary_status
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := map[domain.SummaryStatus]int64{
		domain.SummaryStatusPending:   0,
		domain.SummaryStatusCompleted: 0,
	}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, MapError(err)
		}
		counts[domain.SummaryStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return counts, nil
}

// WithTx implements store.PostStore.WithTx
func (s *PostgresPostStore) WithTx(tx *sql.Tx) store.PostStore {
	return &PostgresPostStore{
		db:     tx,
		logger: s.logger,
	}
}

// updateError wraps a failed UPDATE so callers can match both
// store.ErrUpdateFailed and the mapped driver error.
func updateError(operation, message string, err error) error {
	return store.NewStoreError("post", operation, message,
		fmt.Errorf("%w: %w", store.ErrUpdateFailed, MapError(err)))
}
