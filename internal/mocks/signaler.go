package mocks

import (
	"context"
	"sync"
)

// MockSignaler records wakeup calls.
type MockSignaler struct {
	WakeFn func(ctx context.Context) error
	Err    error

	mu    sync.Mutex
	calls int
}

// Wake implements producer.Signaler
func (m *MockSignaler) Wake(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.WakeFn != nil {
		return m.WakeFn(ctx)
	}
	return m.Err
}

// Calls returns the number of Wake calls.
func (m *MockSignaler) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
