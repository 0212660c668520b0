package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Dispatcher runs jobs on their own goroutines with a concurrency bound.
// It is the single place where job panics are recovered, and it keeps the
// active job count in State accurate on every exit path.
type Dispatcher struct {
	// sem bounds the number of jobs executing at once
	sem *semaphore.Weighted

	// wg tracks running job goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx is handed to every job; cancel aborts in-flight work
	ctx    context.Context
	cancel context.CancelFunc

	state  *State
	logger *slog.Logger

	// panicHandler is called after a job panic has been recovered and logged
	panicHandler func(recovered any)
}

// NewDispatcher creates a dispatcher running at most maxConcurrent jobs at once.
func NewDispatcher(state *State, maxConcurrent int, logger *slog.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		logger.Warn("invalid max concurrent jobs specified, using default",
			"specified_count", maxConcurrent,
			"default_count", 1)
		maxConcurrent = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		ctx:    ctx,
		cancel: cancel,
		state:  state,
		logger: logger,
	}
}

// SetPanicHandler installs a callback invoked after a job panic is recovered.
func (d *Dispatcher) SetPanicHandler(handler func(recovered any)) {
	d.panicHandler = handler
}

// Dispatch counts the job as active immediately and runs fn asynchronously.
// It blocks while all slots are busy; if ctx ends first the job is not run
// and an error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, fn func(ctx context.Context)) error {
	d.state.JobStarted()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.state.JobFinished()
		return fmt.Errorf("dispatch %s: %w", name, err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		defer d.state.JobFinished()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("job panicked",
					"job", name,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()))
				if d.panicHandler != nil {
					d.panicHandler(r)
				}
			}
		}()

		fn(d.ctx)
	}()

	return nil
}

// Wait blocks until every dispatched job has returned or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts the context shared by in-flight jobs.
func (d *Dispatcher) Cancel() {
	d.cancel()
}
