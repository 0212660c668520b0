package mocks

import (
	"context"
	"sync"

	"github.com/blogapp/summarizer/internal/summarization"
)

// MockGateway implements summarization.Gateway for testing
type MockGateway struct {
	HealthFn    func(ctx context.Context) bool
	SummarizeFn func(ctx context.Context, text string) (string, error)

	// Default response values
	Healthy bool
	Summary string
	Err     error

	mu             sync.Mutex
	healthCalls    int
	summarizeTexts []string
}

var _ summarization.Gateway = (*MockGateway)(nil)

// Health implements summarization.Gateway.Health
func (m *MockGateway) Health(ctx context.Context) bool {
	m.mu.Lock()
	m.healthCalls++
	m.mu.Unlock()

	if m.HealthFn != nil {
		return m.HealthFn(ctx)
	}
	return m.Healthy
}

// Summarize implements summarization.Gateway.Summarize
func (m *MockGateway) Summarize(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.summarizeTexts = append(m.summarizeTexts, text)
	m.mu.Unlock()

	if m.SummarizeFn != nil {
		return m.SummarizeFn(ctx, text)
	}
	return m.Summary, m.Err
}

// HealthCalls returns the number of Health calls.
func (m *MockGateway) HealthCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthCalls
}

// SummarizeTexts returns the texts passed to Summarize, in call order.
func (m *MockGateway) SummarizeTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.summarizeTexts...)
}
