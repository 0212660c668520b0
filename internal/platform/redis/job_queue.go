package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blogapp/summarizer/internal/domain"
	"github.com/blogapp/summarizer/internal/metrics"
	"github.com/blogapp/summarizer/internal/platform/logger"
	"github.com/blogapp/summarizer/internal/queue"
	"github.com/redis/go-redis/v9"
)

// JobQueue implements queue.JobQueue on a Redis list.
// Producers LPUSH and the consumer RPOPs, which gives FIFO order.
type JobQueue struct {
	client redis.Cmdable
	key    string
	logger *slog.Logger
}

// Ensure JobQueue implements queue.JobQueue interface
var _ queue.JobQueue = (*JobQueue)(nil)

// NewJobQueue creates a queue on key. An empty key selects queue.DefaultKey.
func NewJobQueue(client redis.Cmdable, key string, logger *slog.Logger) *JobQueue {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = queue.DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		client: client,
		key:    key,
		logger: logger.With(slog.String("component", "job_queue"), slog.String("queue_key", key)),
	}
}

// Key returns the list key.
func (q *JobQueue) Key() string {
	return q.key
}

// Push implements queue.JobQueue.Push
func (q *JobQueue) Push(ctx context.Context, job domain.SummaryJob) error {
	data, err := queue.Encode(job)
	if err != nil {
		return err
	}

	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("%w: lpush: %w", queue.ErrQueueUnavailable, err)
	}

	logger.FromContextOrDefault(ctx, q.logger).Debug("job pushed",
		slog.Int64("post_id", job.PostID),
		slog.Int("attempt", job.Attempt))
	return nil
}

// Pop implements queue.JobQueue.Pop
func (q *JobQueue) Pop(ctx context.Context) (*domain.SummaryJob, error) {
	log := logger.FromContextOrDefault(ctx, q.logger)

	raw, err := q.client.RPop(ctx, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: rpop: %w", queue.ErrQueueUnavailable, err)
	}

	job, err := queue.Decode(raw)
	if err != nil {
		metrics.CorruptJob()
		log.Error("discarding corrupt job",
			slog.String("error", err.Error()),
			slog.Int("raw_length", len(raw)))
		return nil, nil
	}

	log.Debug("job popped",
		slog.Int64("post_id", job.PostID),
		slog.Int("attempt", job.Attempt))
	return job, nil
}

// Len implements queue.JobQueue.Len
func (q *JobQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: llen: %w", queue.ErrQueueUnavailable, err)
	}
	return n, nil
}
