package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/blogapp/summarizer/internal/config"
	"github.com/blogapp/summarizer/internal/domain"
	"github.com/blogapp/summarizer/internal/metrics"
	"github.com/blogapp/summarizer/internal/queue"
	"github.com/blogapp/summarizer/internal/summarization"
)

// ErrLoopAlreadyActive is returned by Run when another loop is running.
var ErrLoopAlreadyActive = errors.New("consumer loop already active")

// Errors for missing dependencies
var (
	ErrNilQueue   = errors.New("job queue cannot be nil")
	ErrNilGateway = errors.New("ML gateway cannot be nil")
	ErrNilStore   = errors.New("result store cannot be nil")
	ErrNilLogger  = errors.New("logger cannot be nil")
)

// ConsumerConfig tunes the consumer loop.
type ConsumerConfig struct {
	// MaxJobAttempts is the number of tries a job gets before it is discarded
	MaxJobAttempts int

	// PollInterval is the sleep after an empty poll
	PollInterval time.Duration

	// MaxEmptyPolls is the number of consecutive empty polls before going idle
	MaxEmptyPolls int

	// HealthCheckInterval is the delay between readiness probes
	HealthCheckInterval time.Duration

	// MaxMLWait bounds one readiness wait
	MaxMLWait time.Duration

	// MaxConcurrentJobs bounds in-flight jobs
	MaxConcurrentJobs int
}

// DefaultConsumerConfig returns the production timings.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		MaxJobAttempts:      domain.DefaultMaxJobAttempts,
		PollInterval:        5 * time.Second,
		MaxEmptyPolls:       6,
		HealthCheckInterval: 10 * time.Second,
		MaxMLWait:           150 * time.Second,
		MaxConcurrentJobs:   8,
	}
}

// ConsumerConfigFrom converts the application configuration.
func ConsumerConfigFrom(cfg config.ConsumerConfig) ConsumerConfig {
	return ConsumerConfig{
		MaxJobAttempts:      cfg.MaxJobAttempts,
		PollInterval:        cfg.PollInterval,
		MaxEmptyPolls:       cfg.MaxEmptyPolls,
		HealthCheckInterval: cfg.HealthCheckInterval,
		MaxMLWait:           cfg.MaxMLWait,
		MaxConcurrentJobs:   cfg.MaxConcurrentJobs,
	}
}

// Consumer drains the summarization queue.
//
// The loop is started on demand (Start or Wakeup) and stops by itself once
// MaxEmptyPolls consecutive polls found nothing and no job is in flight.
type Consumer struct {
	queue      queue.JobQueue
	gateway    summarization.Gateway
	results    *ResultRecorder
	state      *State
	dispatcher *Dispatcher
	clock      Clock
	cfg        ConsumerConfig
	logger     *slog.Logger

	// mu guards the fields below
	mu         sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewConsumer wires a consumer. clock may be nil to use the wall clock.
func NewConsumer(
	q queue.JobQueue,
	gateway summarization.Gateway,
	results ResultStore,
	cfg ConsumerConfig,
	clock Clock,
	logger *slog.Logger,
) (*Consumer, error) {
	if q == nil {
		return nil, ErrNilQueue
	}
	if gateway == nil {
		return nil, ErrNilGateway
	}
	if results == nil {
		return nil, ErrNilStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if clock == nil {
		clock = RealClock{}
	}

	log := logger.With(slog.String("component", "consumer"))
	state := &State{}
	dispatcher := NewDispatcher(state, cfg.MaxConcurrentJobs, log)
	dispatcher.SetPanicHandler(func(any) { metrics.JobFinished(metrics.OutcomePanicked) })

	return &Consumer{
		queue:      q,
		gateway:    gateway,
		results:    NewResultRecorder(results, logger),
		state:      state,
		dispatcher: dispatcher,
		clock:      clock,
		cfg:        cfg,
		logger:     log,
	}, nil
}

// Status returns the consumer's runtime flags.
func (c *Consumer) Status() Snapshot {
	return c.state.Snapshot()
}

// SetMLServiceReady overrides the readiness belief.
func (c *Consumer) SetMLServiceReady(ready bool) {
	prev := c.state.SetMLServiceReady(ready)
	if prev != ready {
		c.logger.Info("ML service readiness changed externally",
			"from", prev,
			"to", ready)
	}
}

// Start launches the loop on its own goroutine unless one is already running.
// It reports whether a loop was started. The loop lives until it goes idle,
// Stop is called, or ctx is done.
func (c *Consumer) Start(ctx context.Context) bool {
	if !c.state.TryStartLoop() {
		c.logger.Info("consumer loop requested but already running")
		return false
	}

	loopCtx, done := c.beginLoop(ctx)
	go func() {
		defer close(done)
		c.run(loopCtx)
	}()
	return true
}

// Run executes the loop on the calling goroutine and returns when it stops.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.state.TryStartLoop() {
		return ErrLoopAlreadyActive
	}

	loopCtx, done := c.beginLoop(ctx)
	defer close(done)
	c.run(loopCtx)
	return nil
}

func (c *Consumer) beginLoop(ctx context.Context) (context.Context, chan struct{}) {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.loopCancel = cancel
	c.loopDone = done
	c.mu.Unlock()

	return loopCtx, done
}

// Wakeup starts the loop when idle, otherwise refreshes readiness with a probe.
func (c *Consumer) Wakeup(ctx context.Context) {
	if c.Start(ctx) {
		c.logger.Info("consumer loop started by wakeup")
		return
	}

	ready := c.gateway.Health(ctx)
	c.state.SetMLServiceReady(ready)
	c.logger.Info("wakeup while active, refreshed ML readiness", "ml_service_ready", ready)
}

// Stop asks a running loop to exit. In-flight jobs keep running.
func (c *Consumer) Stop() {
	c.mu.Lock()
	cancel := c.loopCancel
	c.mu.Unlock()

	if cancel == nil || (!c.state.LoopActive() && c.state.ActiveJobs() == 0) {
		c.logger.Info("consumer loop already stopped and no active jobs")
		return
	}

	c.logger.Info("requesting consumer loop to stop")
	cancel()
}

// Shutdown stops the loop and waits for in-flight jobs until ctx is done,
// at which point remaining jobs are cancelled.
func (c *Consumer) Shutdown(ctx context.Context) error {
	c.Stop()

	c.mu.Lock()
	done := c.loopDone
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	if err := c.dispatcher.Wait(ctx); err != nil {
		c.logger.Warn("cancelling in-flight jobs", "active_jobs", c.state.ActiveJobs())
		c.dispatcher.Cancel()
		return fmt.Errorf("waiting for jobs: %w", err)
	}

	c.dispatcher.Cancel()
	return nil
}

// run is the body of the loop. The loop flag is already set by the caller.
func (c *Consumer) run(ctx context.Context) {
	// an idle exit has already released the flag, possibly to a newer loop
	wentIdle := false
	defer func() {
		if !wentIdle {
			c.state.SetLoopActive(false)
		}
	}()

	c.logger.Info("consumer loop starting")

	ready := c.waitForReady(ctx)
	c.state.SetMLServiceReady(ready)
	if ready {
		c.logger.Info("ML service initially ready, waiting for jobs")
	} else {
		c.logger.Error("ML service failed initial readiness check, polling anyway")
	}

	emptyPolls := 0
	for ctx.Err() == nil {
		stop, err := c.poll(ctx, &emptyPolls)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("critical error in consumer loop", "error", err)
			c.state.SetMLServiceReady(false)
			if c.clock.Sleep(ctx, 2*c.cfg.HealthCheckInterval) != nil {
				break
			}
			continue
		}
		if stop {
			wentIdle = true
			c.logger.Info("consumer loop is now idle")
			return
		}
	}

	c.logger.Info("consumer loop stopped", "reason", context.Cause(ctx))
}

// poll runs one iteration. It reports stop=true when the loop should go idle.
// Panics are turned into errors so the loop survives them.
func (c *Consumer) poll(ctx context.Context, emptyPolls *int) (stop bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in poll: %v\n%s", r, debug.Stack())
		}
	}()

	var job *domain.SummaryJob
	if c.state.MLServiceReady() {
		job = c.pop(ctx)
	} else {
		c.logger.Debug("ML service not ready, skipping queue poll")
	}

	if job != nil {
		*emptyPolls = 0
		metrics.JobReceived()
		c.logger.Info("job received from queue", "post_id", job.PostID, "attempt", job.Attempt)

		j := *job
		if err := c.dispatcher.Dispatch(ctx, "summarize", func(jobCtx context.Context) {
			c.handleJob(jobCtx, j)
		}); err != nil {
			// Only possible when ctx is done; the loop exits on the next check.
			c.logger.Warn("job not dispatched, returning it to the queue", "post_id", j.PostID, "error", err)
			if pushErr := c.queue.Push(context.WithoutCancel(ctx), j); pushErr != nil {
				c.logger.Error("failed to return undispatched job", "post_id", j.PostID, "error", pushErr)
			}
		}
		return false, nil
	}

	*emptyPolls++
	metrics.EmptyPoll()
	c.logger.Debug("empty poll", "poll_count", *emptyPolls)

	if *emptyPolls >= c.cfg.MaxEmptyPolls {
		if c.state.TryGoIdle() {
			c.logger.Info("max empty polls reached and no active jobs, going idle", "poll_count", *emptyPolls)
			return true, nil
		}

		c.logger.Info("queue idle but jobs still running, checking ML health", "active_jobs", c.state.ActiveJobs())
		c.state.SetMLServiceReady(c.gateway.Health(ctx))
		return false, c.clock.Sleep(ctx, c.cfg.PollInterval)
	}

	return false, c.clock.Sleep(ctx, c.cfg.PollInterval)
}

// pop treats queue failures as an empty queue.
func (c *Consumer) pop(ctx context.Context) *domain.SummaryJob {
	job, err := c.queue.Pop(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("failed to pop job", "error", err)
		}
		return nil
	}
	return job
}

// waitForReady probes the ML service every HealthCheckInterval until it is
// ready or MaxMLWait has elapsed.
func (c *Consumer) waitForReady(ctx context.Context) bool {
	c.logger.Info("waiting for ML service", "max_wait", c.cfg.MaxMLWait)
	start := c.clock.Now()

	for c.clock.Now().Sub(start) < c.cfg.MaxMLWait {
		if c.gateway.Health(ctx) {
			c.logger.Info("ML service is ready")
			return true
		}
		c.logger.Info("ML service not ready, waiting before next check", "interval", c.cfg.HealthCheckInterval)
		if err := c.clock.Sleep(ctx, c.cfg.HealthCheckInterval); err != nil {
			return false
		}
	}

	c.logger.Error("ML service did not become ready in time", "max_wait", c.cfg.MaxMLWait)
	return false
}

// handleJob summarizes one job and records the outcome.
func (c *Consumer) handleJob(ctx context.Context, job domain.SummaryJob) {
	log := c.logger.With("post_id", job.PostID, "attempt", job.Attempt)
	log.Info("processing job", "active_jobs", c.state.ActiveJobs())

	// entries written by other producers may already be past the limit
	if job.Attempt > c.cfg.MaxJobAttempts {
		log.Error("job exceeds max attempts, discarded without processing, post remains PENDING",
			"max_attempts", c.cfg.MaxJobAttempts)
		c.results.Pending(ctx, job.PostID)
		metrics.JobFinished(metrics.OutcomeDiscarded)
		return
	}

	if !c.state.MLServiceReady() {
		log.Info("ML service marked not ready before processing, re-checking")
		c.state.SetMLServiceReady(c.waitForReady(ctx))
	}

	if !c.state.MLServiceReady() {
		log.Warn("ML service not ready after re-check")
		c.retryOrDiscard(ctx, log, job)
		return
	}

	summary, err := c.gateway.Summarize(ctx, job.Text)
	if err != nil {
		log.Warn("summarization failed", "error", err)
		c.state.SetMLServiceReady(false)
		c.retryOrDiscard(ctx, log, job)
		return
	}

	c.results.Completed(ctx, job.PostID, summary)
	metrics.JobFinished(metrics.OutcomeCompleted)
	log.Info("job completed", "active_jobs", c.state.ActiveJobs()-1)
}

// retryOrDiscard re-queues the job with the next attempt number while attempts
// remain. Either way the post stays PENDING.
func (c *Consumer) retryOrDiscard(ctx context.Context, log *slog.Logger, job domain.SummaryJob) {
	if job.CanRetry(c.cfg.MaxJobAttempts) {
		next := job.Retry()
		if err := c.queue.Push(ctx, next); err != nil {
			log.Error("failed to re-queue job, job lost", "error", err)
		} else {
			log.Info("job re-queued", "next_attempt", next.Attempt)
		}
		c.results.Pending(ctx, job.PostID)
		metrics.JobFinished(metrics.OutcomeRequeued)
		return
	}

	log.Error("max attempts reached, job discarded, post remains PENDING", "max_attempts", c.cfg.MaxJobAttempts)
	c.results.Pending(ctx, job.PostID)
	metrics.JobFinished(metrics.OutcomeDiscarded)
}
