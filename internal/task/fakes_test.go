package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/blogapp/summarizer/internal/domain"
)

var errMLDown = errors.New("ml service down")

// fakeClock advances virtual time on Sleep and yields briefly so that job
// goroutines get scheduled while the loop spins.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	time.Sleep(100 * time.Microsecond)
	return ctx.Err()
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// fakeGateway is a scriptable summarization.Gateway.
type fakeGateway struct {
	mu             sync.Mutex
	healthFn       func() bool
	summarizeFn    func(text string) (string, error)
	healthCalls    int
	summarizeCalls int
}

func (g *fakeGateway) Health(ctx context.Context) bool {
	g.mu.Lock()
	g.healthCalls++
	fn := g.healthFn
	g.mu.Unlock()
	if fn == nil {
		return true
	}
	return fn()
}

func (g *fakeGateway) Summarize(ctx context.Context, text string) (string, error) {
	g.mu.Lock()
	g.summarizeCalls++
	fn := g.summarizeFn
	g.mu.Unlock()
	if fn == nil {
		return "summary of " + text, nil
	}
	return fn(text)
}

func (g *fakeGateway) HealthCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.healthCalls
}

func (g *fakeGateway) SummarizeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.summarizeCalls
}

// fakeQueue is an in-memory FIFO matching LPUSH/RPOP ordering.
type fakeQueue struct {
	mu      sync.Mutex
	items   []domain.SummaryJob
	popFn   func() (*domain.SummaryJob, error)
	pushErr error
}

func (q *fakeQueue) Push(ctx context.Context, job domain.SummaryJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pushErr != nil {
		return q.pushErr
	}
	q.items = append(q.items, job)
	return nil
}

func (q *fakeQueue) Pop(ctx context.Context) (*domain.SummaryJob, error) {
	q.mu.Lock()
	fn := q.popFn
	q.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return q.pop(), nil
}

func (q *fakeQueue) pop() *domain.SummaryJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	job := q.items[0]
	q.items = q.items[1:]
	return &job
}

func (q *fakeQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

func (q *fakeQueue) Items() []domain.SummaryJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.SummaryJob(nil), q.items...)
}

// fakeStore records the last status written per post.
type fakeStore struct {
	mu        sync.Mutex
	status    map[int64]domain.SummaryStatus
	summaries map[int64]string
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		status:    make(map[int64]domain.SummaryStatus),
		summaries: make(map[int64]string),
	}
}

func (s *fakeStore) MarkCompleted(ctx context.Context, id int64, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.status[id] = domain.SummaryStatusCompleted
	s.summaries[id] = summary
	return nil
}

func (s *fakeStore) MarkPending(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.status[id] = domain.SummaryStatusPending
	delete(s.summaries, id)
	return nil
}

func (s *fakeStore) Status(id int64) (domain.SummaryStatus, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[id]
	return st, s.summaries[id], ok
}

func testConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		MaxJobAttempts:      3,
		PollInterval:        5 * time.Second,
		MaxEmptyPolls:       6,
		HealthCheckInterval: 10 * time.Second,
		MaxMLWait:           30 * time.Second,
		MaxConcurrentJobs:   4,
	}
}
