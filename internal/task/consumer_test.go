package task

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blogapp/summarizer/internal/domain"
	"github.com/blogapp/summarizer/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type consumerFixture struct {
	consumer *Consumer
	queue    *fakeQueue
	gateway  *fakeGateway
	store    *fakeStore
	clock    *fakeClock
	logs     *logger.TestLogBuffer
}

func newConsumerFixture(t *testing.T, cfg ConsumerConfig) *consumerFixture {
	t.Helper()

	log, buf := logger.NewTestLogger()
	f := &consumerFixture{
		queue:   &fakeQueue{},
		gateway: &fakeGateway{},
		store:   newFakeStore(),
		clock:   newFakeClock(),
		logs:    buf,
	}

	c, err := NewConsumer(f.queue, f.gateway, f.store, cfg, f.clock, log)
	require.NoError(t, err)
	f.consumer = c
	return f
}

func mustJob(t *testing.T, postID int64, text string) domain.SummaryJob {
	t.Helper()
	job, err := domain.NewSummaryJob(postID, text)
	require.NoError(t, err)
	return job
}

func runWithTimeout(t *testing.T, c *Consumer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, c.Run(ctx))
	require.NoError(t, ctx.Err(), "loop did not go idle in time")
}

func TestNewConsumer_Validation(t *testing.T) {
	log, _ := logger.NewTestLogger()
	cfg := testConsumerConfig()

	tests := []struct {
		name    string
		build   func() (*Consumer, error)
		wantErr error
	}{
		{
			name:    "nil queue",
			build:   func() (*Consumer, error) { return NewConsumer(nil, &fakeGateway{}, newFakeStore(), cfg, nil, log) },
			wantErr: ErrNilQueue,
		},
		{
			name:    "nil gateway",
			build:   func() (*Consumer, error) { return NewConsumer(&fakeQueue{}, nil, newFakeStore(), cfg, nil, log) },
			wantErr: ErrNilGateway,
		},
		{
			name:    "nil store",
			build:   func() (*Consumer, error) { return NewConsumer(&fakeQueue{}, &fakeGateway{}, nil, cfg, nil, log) },
			wantErr: ErrNilStore,
		},
		{
			name: "nil logger",
			build: func() (*Consumer, error) {
				return NewConsumer(&fakeQueue{}, &fakeGateway{}, newFakeStore(), cfg, nil, nil)
			},
			wantErr: ErrNilLogger,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := tc.build()
			assert.Nil(t, c)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	c, err := NewConsumer(&fakeQueue{}, &fakeGateway{}, newFakeStore(), cfg, nil, log)
	require.NoError(t, err)
	assert.IsType(t, RealClock{}, c.clock)
}

func TestConsumer_Run_ProcessesJobsAndGoesIdle(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	require.NoError(t, f.queue.Push(context.Background(), mustJob(t, 1, "first")))
	require.NoError(t, f.queue.Push(context.Background(), mustJob(t, 2, "second")))

	runWithTimeout(t, f.consumer)

	for id, text := range map[int64]string{1: "first", 2: "second"} {
		status, summary, ok := f.store.Status(id)
		require.True(t, ok)
		assert.Equal(t, domain.SummaryStatusCompleted, status)
		assert.Equal(t, "summary of "+text, summary)
	}

	assert.Empty(t, f.queue.Items())
	assert.Equal(t, Snapshot{}, f.consumer.Status(), "idle loop leaves everything reset")
	assert.True(t, f.logs.HasMessage("consumer loop is now idle"))
}

func TestConsumer_Run_MLNeverReady(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	f.gateway.healthFn = func() bool { return false }
	job := mustJob(t, 7, "waiting")
	require.NoError(t, f.queue.Push(context.Background(), job))

	runWithTimeout(t, f.consumer)

	// 30s budget probed every 10s
	assert.Equal(t, 3, f.gateway.HealthCalls())
	assert.Equal(t, 0, f.gateway.SummarizeCalls())
	assert.Equal(t, []domain.SummaryJob{job}, f.queue.Items(), "queue is not polled while not ready")
	assert.False(t, f.consumer.Status().LoopActive)
	assert.True(t, f.logs.HasMessage("ML service failed initial readiness check, polling anyway"))
}

func TestConsumer_Run_EmptyPollsSleepPollInterval(t *testing.T) {
	cfg := testConsumerConfig()
	f := newConsumerFixture(t, cfg)

	runWithTimeout(t, f.consumer)

	slept := f.clock.Slept()
	// the threshold poll exits without sleeping
	require.Len(t, slept, cfg.MaxEmptyPolls-1)
	for _, d := range slept {
		assert.Equal(t, cfg.PollInterval, d)
	}
}

func TestConsumer_Run_DoesNotIdleWhileJobsActive(t *testing.T) {
	cfg := testConsumerConfig()
	f := newConsumerFixture(t, cfg)

	started := make(chan struct{})
	release := make(chan struct{})
	f.gateway.summarizeFn = func(text string) (string, error) {
		close(started)
		<-release
		return "summary of " + text, nil
	}
	require.NoError(t, f.queue.Push(context.Background(), mustJob(t, 11, "slow")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.consumer.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not dispatched")
	}

	// one probe at startup, then one per poll once the threshold is passed
	require.Eventually(t, func() bool {
		return f.gateway.HealthCalls() > 3
	}, 5*time.Second, time.Millisecond)
	assert.True(t, f.consumer.Status().LoopActive, "loop must keep running while a job is in flight")
	assert.Equal(t, 1, f.consumer.Status().ActiveJobs)
	assert.GreaterOrEqual(t, len(f.clock.Slept()), cfg.MaxEmptyPolls)
	assert.True(t, f.logs.HasMessage("queue idle but jobs still running, checking ML health"))

	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not go idle after the job finished")
	}

	assert.False(t, f.consumer.Status().LoopActive)
	status, _, ok := f.store.Status(11)
	require.True(t, ok)
	assert.Equal(t, domain.SummaryStatusCompleted, status)
}

// gatedWriter blocks the first write containing marker until release is closed.
type gatedWriter struct {
	marker  []byte
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func (w *gatedWriter) Write(p []byte) (int, error) {
	if bytes.Contains(p, w.marker) {
		w.once.Do(func() {
			close(w.reached)
			<-w.release
		})
	}
	return len(p), nil
}

func TestConsumer_IdleLoopReleasesFlagBeforeExiting(t *testing.T) {
	cfg := testConsumerConfig()
	cfg.MaxEmptyPolls = 2

	w := &gatedWriter{
		marker:  []byte("consumer loop is now idle"),
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
	gateway := &fakeGateway{}
	var holdHealth atomic.Bool
	unblock := make(chan struct{})
	gateway.healthFn = func() bool {
		if holdHealth.Load() {
			<-unblock
		}
		return true
	}

	c, err := NewConsumer(&fakeQueue{}, gateway, newFakeStore(), cfg, newFakeClock(), slog.New(slog.NewJSONHandler(w, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() { first <- c.Run(ctx) }()

	select {
	case <-w.reached:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not reach the idle decision")
	}

	// the exiting loop has not returned yet, but a wakeup can already start a new one
	assert.False(t, c.Status().LoopActive)
	holdHealth.Store(true)
	require.True(t, c.Start(ctx), "wakeup during the idle transition must start a loop")

	close(w.release)
	select {
	case err := <-first:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first loop did not exit")
	}

	assert.True(t, c.Status().LoopActive, "exiting loop must not clear the new loop's flag")

	close(unblock)
	cancel()
	require.Eventually(t, func() bool { return !c.Status().LoopActive }, 5*time.Second, time.Millisecond)
}

func TestConsumer_Run_AlreadyActive(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	require.True(t, f.consumer.state.TryStartLoop())

	err := f.consumer.Run(context.Background())
	assert.ErrorIs(t, err, ErrLoopAlreadyActive)
	assert.False(t, f.consumer.Start(context.Background()))
}

func TestConsumer_Run_RecoversFromIterationPanic(t *testing.T) {
	cfg := testConsumerConfig()
	f := newConsumerFixture(t, cfg)

	var pops atomic.Int32
	f.queue.popFn = func() (*domain.SummaryJob, error) {
		if pops.Add(1) == 1 {
			panic("queue exploded")
		}
		return nil, nil
	}

	runWithTimeout(t, f.consumer)

	assert.True(t, f.logs.HasMessage("critical error in consumer loop"))
	assert.Contains(t, f.clock.Slept(), 2*cfg.HealthCheckInterval)
	// readiness was dropped, so the queue is not polled again
	assert.Equal(t, int32(1), pops.Load())
	assert.False(t, f.consumer.Status().LoopActive)
}

func TestConsumer_Run_QueueErrorCountsAsEmptyPoll(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	f.queue.popFn = func() (*domain.SummaryJob, error) {
		return nil, errors.New("connection refused")
	}

	runWithTimeout(t, f.consumer)

	assert.True(t, f.logs.HasMessage("failed to pop job"))
	assert.False(t, f.consumer.Status().LoopActive)
}

func TestConsumer_Run_ContextCancelledStopsLoop(t *testing.T) {
	cfg := testConsumerConfig()
	cfg.MaxEmptyPolls = 1 << 30
	f := newConsumerFixture(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.consumer.Run(ctx) }()

	require.Eventually(t, func() bool { return f.consumer.Status().LoopActive }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.False(t, f.consumer.Status().LoopActive)
}

func TestConsumer_HandleJob_Success(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	f.consumer.state.SetMLServiceReady(true)

	f.consumer.handleJob(context.Background(), mustJob(t, 3, "hello"))

	status, summary, ok := f.store.Status(3)
	require.True(t, ok)
	assert.Equal(t, domain.SummaryStatusCompleted, status)
	assert.Equal(t, "summary of hello", summary)
	assert.Empty(t, f.queue.Items())
	assert.Equal(t, 0, f.gateway.HealthCalls(), "ready consumer does not re-probe")
}

func TestConsumer_HandleJob_FailureRequeuesNextAttempt(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	f.consumer.state.SetMLServiceReady(true)
	f.gateway.summarizeFn = func(string) (string, error) { return "", errMLDown }

	job := mustJob(t, 4, "retry me")
	f.consumer.handleJob(context.Background(), job)

	assert.Equal(t, []domain.SummaryJob{{PostID: 4, Text: "retry me", Attempt: 2}}, f.queue.Items())
	status, _, ok := f.store.Status(4)
	require.True(t, ok)
	assert.Equal(t, domain.SummaryStatusPending, status)
	assert.False(t, f.consumer.state.MLServiceReady(), "failed summarize marks ML not ready")
	assert.Equal(t, 1, job.Attempt, "original job is not mutated")
}

func TestConsumer_HandleJob_DiscardsAfterMaxAttempts(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	f.consumer.state.SetMLServiceReady(true)
	f.gateway.summarizeFn = func(string) (string, error) { return "", errMLDown }

	job := domain.SummaryJob{PostID: 5, Text: "last try", Attempt: 3}
	f.consumer.handleJob(context.Background(), job)

	assert.Empty(t, f.queue.Items())
	status, _, ok := f.store.Status(5)
	require.True(t, ok)
	assert.Equal(t, domain.SummaryStatusPending, status)
	assert.True(t, f.logs.HasMessage("max attempts reached, job discarded, post remains PENDING"))
}

func TestConsumer_HandleJob_AttemptLimit(t *testing.T) {
	tests := []struct {
		name          string
		attempt       int
		wantSummarize int
		wantStatus    domain.SummaryStatus
	}{
		{name: "last allowed attempt is processed", attempt: 3, wantSummarize: 1, wantStatus: domain.SummaryStatusCompleted},
		{name: "one past the limit", attempt: 4, wantSummarize: 0, wantStatus: domain.SummaryStatusPending},
		{name: "far past the limit", attempt: 7, wantSummarize: 0, wantStatus: domain.SummaryStatusPending},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newConsumerFixture(t, testConsumerConfig())
			f.consumer.state.SetMLServiceReady(true)

			f.consumer.handleJob(context.Background(), domain.SummaryJob{PostID: 9, Text: "t", Attempt: tc.attempt})

			assert.Equal(t, tc.wantSummarize, f.gateway.SummarizeCalls())
			assert.Empty(t, f.queue.Items(), "over-limit jobs are never re-queued")
			status, _, ok := f.store.Status(9)
			require.True(t, ok)
			assert.Equal(t, tc.wantStatus, status)
			if tc.wantSummarize == 0 {
				assert.True(t, f.logs.HasMessage("job exceeds max attempts, discarded without processing, post remains PENDING"))
			}
		})
	}
}

func TestConsumer_HandleJob_NotReadyRequeuesWithoutSummarizing(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	f.gateway.healthFn = func() bool { return false }

	f.consumer.handleJob(context.Background(), mustJob(t, 6, "later"))

	assert.Equal(t, 0, f.gateway.SummarizeCalls())
	assert.Equal(t, 3, f.gateway.HealthCalls())
	assert.Equal(t, []domain.SummaryJob{{PostID: 6, Text: "later", Attempt: 2}}, f.queue.Items())
}

func TestConsumer_HandleJob_RecheckRecovers(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	var probes atomic.Int32
	f.gateway.healthFn = func() bool { return probes.Add(1) >= 2 }

	f.consumer.handleJob(context.Background(), mustJob(t, 8, "warming up"))

	status, _, ok := f.store.Status(8)
	require.True(t, ok)
	assert.Equal(t, domain.SummaryStatusCompleted, status)
	assert.True(t, f.consumer.state.MLServiceReady())
}

func TestConsumer_HandleJob_RequeuePushFailureIsLogged(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	f.consumer.state.SetMLServiceReady(true)
	f.gateway.summarizeFn = func(string) (string, error) { return "", errMLDown }
	f.queue.pushErr = errors.New("redis down")

	f.consumer.handleJob(context.Background(), mustJob(t, 9, "lost"))

	assert.True(t, f.logs.HasMessage("failed to re-queue job, job lost"))
	status, _, ok := f.store.Status(9)
	require.True(t, ok)
	assert.Equal(t, domain.SummaryStatusPending, status)
}

func TestConsumer_HandleJob_StoreFailureIsSwallowed(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	f.consumer.state.SetMLServiceReady(true)
	f.store.err = errors.New("db down")

	assert.NotPanics(t, func() {
		f.consumer.handleJob(context.Background(), mustJob(t, 10, "text"))
	})
	assert.True(t, f.logs.HasMessage("failed to store summary"))
}

func TestConsumer_JobPanicKeepsCountAccurate(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	f.gateway.summarizeFn = func(string) (string, error) { panic("model crashed") }
	require.NoError(t, f.queue.Push(context.Background(), mustJob(t, 11, "crash")))

	runWithTimeout(t, f.consumer)

	assert.Equal(t, 0, f.consumer.Status().ActiveJobs)
	assert.True(t, f.logs.HasMessage("job panicked"))
}

func TestConsumer_Wakeup_StartsIdleLoop(t *testing.T) {
	cfg := testConsumerConfig()
	cfg.MaxEmptyPolls = 1 << 30
	f := newConsumerFixture(t, cfg)

	f.consumer.Wakeup(context.Background())

	require.Eventually(t, func() bool { return f.consumer.Status().MLServiceReady }, time.Second, time.Millisecond)
	assert.True(t, f.consumer.Status().LoopActive)
	assert.True(t, f.logs.HasMessage("consumer loop started by wakeup"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.consumer.Shutdown(ctx))
	assert.False(t, f.consumer.Status().LoopActive)
}

func TestConsumer_Wakeup_WhileActiveRefreshesReadiness(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())
	require.True(t, f.consumer.state.TryStartLoop())
	f.consumer.state.SetMLServiceReady(false)

	f.consumer.Wakeup(context.Background())

	assert.Equal(t, 1, f.gateway.HealthCalls())
	assert.True(t, f.consumer.Status().MLServiceReady)
	assert.True(t, f.consumer.Status().LoopActive)
}

func TestConsumer_Start_RepeatedCallsRunOneLoop(t *testing.T) {
	cfg := testConsumerConfig()
	cfg.MaxEmptyPolls = 1 << 30
	f := newConsumerFixture(t, cfg)

	var started atomic.Int32
	for i := 0; i < 10; i++ {
		if f.consumer.Start(context.Background()) {
			started.Add(1)
		}
	}
	assert.Equal(t, int32(1), started.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.consumer.Shutdown(ctx))
}

func TestConsumer_Stop_WhenIdle(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())

	f.consumer.Stop()

	assert.True(t, f.logs.HasMessage("consumer loop already stopped and no active jobs"))
}

func TestConsumer_SetMLServiceReady(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())

	f.consumer.SetMLServiceReady(true)
	assert.True(t, f.consumer.Status().MLServiceReady)
	assert.True(t, f.logs.HasMessage("ML service readiness changed externally"))
}

func TestConsumer_Shutdown_CancelsSlowJobs(t *testing.T) {
	f := newConsumerFixture(t, testConsumerConfig())

	jobCtxDone := make(chan struct{})
	require.NoError(t, f.consumer.dispatcher.Dispatch(context.Background(), "slow", func(ctx context.Context) {
		<-ctx.Done()
		close(jobCtxDone)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.consumer.Shutdown(ctx)
	require.Error(t, err)

	select {
	case <-jobCtxDone:
	case <-time.After(time.Second):
		t.Fatal("in-flight job was not cancelled")
	}
}
