// Package producer is the write side of the summarization pipeline: it turns
// post mutations into queued jobs and nudges the worker awake.
package producer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blogapp/summarizer/internal/domain"
	"github.com/blogapp/summarizer/internal/events"
	"github.com/blogapp/summarizer/internal/metrics"
	"github.com/blogapp/summarizer/internal/platform/logger"
	"github.com/blogapp/summarizer/internal/queue"
)

// Signaler wakes the consumer.
type Signaler interface {
	Wake(ctx context.Context) error
}

// Enqueuer pushes summarization jobs and fires a wakeup after each push.
// Failures are logged and counted but never returned: a post write must not
// fail because the pipeline is down.
type Enqueuer struct {
	queue  queue.JobQueue
	waker  Signaler
	logger *slog.Logger

	// wakes tracks outstanding wakeup goroutines
	wakes sync.WaitGroup
}

// Ensure Enqueuer can be registered on the event emitter
var _ events.EventHandler = (*Enqueuer)(nil)

// NewEnqueuer creates an Enqueuer. waker may be nil to disable wakeups.
func NewEnqueuer(q queue.JobQueue, waker Signaler, logger *slog.Logger) *Enqueuer {
	if q == nil {
		panic("job queue cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enqueuer{
		queue:  q,
		waker:  waker,
		logger: logger.With(slog.String("component", "enqueuer")),
	}
}

// Enqueue pushes the first attempt of a job for postID and, if the push
// succeeded, wakes the consumer in the background.
func (e *Enqueuer) Enqueue(ctx context.Context, postID int64, text string) bool {
	log := logger.FromContextOrDefault(ctx, e.logger).With(slog.Int64("post_id", postID))

	job, err := domain.NewSummaryJob(postID, text)
	if err != nil {
		metrics.Enqueued(err)
		log.Error("Failed to enqueue job", slog.String("error", err.Error()))
		return false
	}

	if err := e.queue.Push(ctx, job); err != nil {
		metrics.Enqueued(err)
		log.Error("Failed to enqueue job", slog.String("error", err.Error()))
		return false
	}

	metrics.Enqueued(nil)
	log.Info("job enqueued")

	if e.waker != nil {
		// detached so the wakeup outlives the request that triggered it
		wakeCtx := context.WithoutCancel(ctx)
		e.wakes.Add(1)
		go func() {
			defer e.wakes.Done()
			if err := e.waker.Wake(wakeCtx); err != nil {
				log.Warn("failed to wake consumer", slog.String("error", err.Error()))
			}
		}()
	}

	return true
}

// HandleEvent implements events.EventHandler. It never fails.
func (e *Enqueuer) HandleEvent(ctx context.Context, event *events.PostMutatedEvent) error {
	e.Enqueue(ctx, event.PostID, event.Text)
	return nil
}

// Wait blocks until all background wakeups have finished.
func (e *Enqueuer) Wait() {
	e.wakes.Wait()
}
