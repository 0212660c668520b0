package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blogapp/summarizer/internal/domain"
	"github.com/blogapp/summarizer/internal/events"
	"github.com/blogapp/summarizer/internal/mocks"
	"github.com/blogapp/summarizer/internal/producer"
	"github.com/blogapp/summarizer/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPipeline struct {
	pipeline *pipeline
	posts    *mocks.MockPostStore
	queue    *mocks.MockJobQueue
	signaler *mocks.MockSignaler
	sql      sqlmock.Sqlmock
	opened   int
}

func newTestPipeline(t *testing.T, posts ...*domain.Post) *testPipeline {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tp := &testPipeline{
		posts:    mocks.NewMockPostStore(posts...),
		queue:    &mocks.MockJobQueue{},
		signaler: &mocks.MockSignaler{},
		sql:      mock,
	}

	enqueuer := producer.NewEnqueuer(tp.queue, tp.signaler, log)
	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(enqueuer)

	svc, err := service.NewPostService(db, tp.posts, emitter, log)
	require.NoError(t, err)

	tp.pipeline = &pipeline{
		service:  svc,
		posts:    tp.posts,
		queue:    tp.queue,
		queueKey: "summarization_jobs_v1",
		enqueuer: enqueuer,
		logger:   log,
	}
	return tp
}

func (tp *testPipeline) open(ctx context.Context) (*pipeline, error) {
	tp.opened++
	return tp.pipeline, nil
}

func execute(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func completedPost(id int64, body string) *domain.Post {
	summary := "old summary"
	return &domain.Post{
		ID:            id,
		Title:         "title",
		Body:          body,
		Summary:       &summary,
		SummaryStatus: domain.SummaryStatusCompleted,
	}
}

func pendingPost(id int64, body string) *domain.Post {
	return &domain.Post{
		ID:            id,
		Title:         "title",
		Body:          body,
		SummaryStatus: domain.SummaryStatusPending,
	}
}

func TestPostCommand(t *testing.T) {
	t.Run("queues the post and wakes the worker", func(t *testing.T) {
		tp := newTestPipeline(t, completedPost(42, "the body"))
		tp.sql.ExpectBegin()
		tp.sql.ExpectCommit()

		out, err := execute(t, tp.open, "post", "42")

		require.NoError(t, err)
		assert.Contains(t, out, "queued summary for post 42 (PENDING)")
		assert.Equal(t, domain.SummaryStatusPending, tp.posts.Post(42).SummaryStatus)

		pushed := tp.queue.Pushed()
		require.Len(t, pushed, 1)
		assert.Equal(t, domain.SummaryJob{PostID: 42, Text: "the body", Attempt: 1}, pushed[0])

		// close waits for the background wakeup
		assert.Equal(t, 1, tp.signaler.Calls())
		assert.NoError(t, tp.sql.ExpectationsWereMet())
	})

	t.Run("unknown post", func(t *testing.T) {
		tp := newTestPipeline(t)
		tp.sql.ExpectBegin()
		tp.sql.ExpectRollback()

		_, err := execute(t, tp.open, "post", "7")

		require.Error(t, err)
		assert.True(t, errors.Is(err, service.ErrPostNotFound))
		assert.Zero(t, tp.queue.PushCount())
	})

	for _, arg := range []string{"abc", "0", "-3"} {
		t.Run("invalid id "+arg, func(t *testing.T) {
			tp := newTestPipeline(t)

			_, err := execute(t, tp.open, "post", "--", arg)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid post id")
			assert.Zero(t, tp.opened, "pipeline should not be opened for a bad id")
		})
	}

	t.Run("requires exactly one argument", func(t *testing.T) {
		tp := newTestPipeline(t)

		_, err := execute(t, tp.open, "post")

		assert.Error(t, err)
		assert.Zero(t, tp.opened)
	})
}

func TestPendingCommand(t *testing.T) {
	t.Run("queues every pending post", func(t *testing.T) {
		tp := newTestPipeline(t,
			pendingPost(1, "first"),
			completedPost(2, "second"),
			pendingPost(3, "third"),
		)

		out, err := execute(t, tp.open, "pending")

		require.NoError(t, err)
		assert.Contains(t, out, "queued 2 pending posts")

		pushed := tp.queue.Pushed()
		require.Len(t, pushed, 2)
		assert.Equal(t, int64(1), pushed[0].PostID)
		assert.Equal(t, int64(3), pushed[1].PostID)
	})

	t.Run("respects the limit", func(t *testing.T) {
		tp := newTestPipeline(t,
			pendingPost(1, "first"),
			pendingPost(2, "second"),
			pendingPost(3, "third"),
		)

		out, err := execute(t, tp.open, "pending", "--limit", "2")

		require.NoError(t, err)
		assert.Contains(t, out, "queued 2 pending posts")
		assert.Equal(t, 2, tp.queue.PushCount())
	})

	t.Run("rejects a non-positive limit", func(t *testing.T) {
		tp := newTestPipeline(t)

		_, err := execute(t, tp.open, "pending", "--limit", "0")

		require.Error(t, err)
		assert.Zero(t, tp.opened)
	})

	t.Run("push failures do not fail the command", func(t *testing.T) {
		tp := newTestPipeline(t, pendingPost(1, "first"))
		tp.queue.PushFn = func(ctx context.Context, job domain.SummaryJob) error {
			return errors.New("queue down")
		}

		out, err := execute(t, tp.open, "pending")

		require.NoError(t, err)
		assert.Contains(t, out, "queued 1 pending posts")
		assert.Zero(t, tp.signaler.Calls(), "no wakeup without a successful push")
	})
}

func TestStatusCommand(t *testing.T) {
	tp := newTestPipeline(t,
		pendingPost(1, "first"),
		completedPost(2, "second"),
		completedPost(3, "third"),
	)
	tp.queue.LenFn = func(ctx context.Context) (int64, error) { return 5, nil }

	out, err := execute(t, tp.open, "status")

	require.NoError(t, err)
	assert.Regexp(t, `QUEUE\s+summarization_jobs_v1\s+5`, out)
	assert.Regexp(t, `POSTS\s+PENDING\s+1`, out)
	assert.Regexp(t, `POSTS\s+COMPLETED\s+2`, out)
}

func TestStatusCommand_QueueError(t *testing.T) {
	tp := newTestPipeline(t)
	tp.queue.LenFn = func(ctx context.Context) (int64, error) {
		return 0, errors.New("queue unavailable")
	}

	_, err := execute(t, tp.open, "status")

	assert.EqualError(t, err, "queue unavailable")
}

func TestOpenerError(t *testing.T) {
	open := func(ctx context.Context) (*pipeline, error) {
		return nil, errors.New("failed to load configuration")
	}

	_, err := execute(t, open, "status")

	assert.EqualError(t, err, "failed to load configuration")
}
