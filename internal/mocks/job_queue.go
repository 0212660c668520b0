package mocks

import (
	"context"
	"sync"

	"github.com/blogapp/summarizer/internal/domain"
	"github.com/blogapp/summarizer/internal/queue"
)

// MockJobQueue implements queue.JobQueue for testing.
// Without overrides it behaves as an in-memory FIFO.
type MockJobQueue struct {
	PushFn func(ctx context.Context, job domain.SummaryJob) error
	PopFn  func(ctx context.Context) (*domain.SummaryJob, error)
	LenFn  func(ctx context.Context) (int64, error)

	mu     sync.Mutex
	items  []domain.SummaryJob
	pushed []domain.SummaryJob
}

var _ queue.JobQueue = (*MockJobQueue)(nil)

// Push implements queue.JobQueue.Push
func (m *MockJobQueue) Push(ctx context.Context, job domain.SummaryJob) error {
	m.mu.Lock()
	m.pushed = append(m.pushed, job)
	m.mu.Unlock()

	if m.PushFn != nil {
		return m.PushFn(ctx, job)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, job)
	return nil
}

// Pop implements queue.JobQueue.Pop
func (m *MockJobQueue) Pop(ctx context.Context) (*domain.SummaryJob, error) {
	if m.PopFn != nil {
		return m.PopFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil, nil
	}
	job := m.items[0]
	m.items = m.items[1:]
	return &job, nil
}

// Len implements queue.JobQueue.Len
func (m *MockJobQueue) Len(ctx context.Context) (int64, error) {
	if m.LenFn != nil {
		return m.LenFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.items)), nil
}

// Pushed returns every job passed to Push, including failed pushes.
func (m *MockJobQueue) Pushed() []domain.SummaryJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SummaryJob(nil), m.pushed...)
}

// PushCount returns the number of Push calls.
func (m *MockJobQueue) PushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pushed)
}

// Items returns the jobs currently queued.
func (m *MockJobQueue) Items() []domain.SummaryJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SummaryJob(nil), m.items...)
}
