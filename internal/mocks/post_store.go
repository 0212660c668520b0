package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/blogapp/summarizer/internal/domain"
	"github.com/blogapp/summarizer/internal/store"
)

// MockPostStore implements store.PostStore for testing.
// Without overrides it keeps posts in memory and assigns sequential IDs.
type MockPostStore struct {
	CreateFn         func(ctx context.Context, post *domain.Post) error
	GetByIDFn        func(ctx context.Context, id int64) (*domain.Post, error)
	UpdateContentFn  func(ctx context.Context, id int64, title, body string) error
	MarkCompletedFn  func(ctx context.Context, id int64, summary string) error
	MarkPendingFn    func(ctx context.Context, id int64) error
	ListPendingIDsFn func(ctx context.Context, limit int) ([]int64, error)
	CountByStatusFn  func(ctx context.Context) (map[domain.SummaryStatus]int64, error)

	mu     sync.Mutex
	posts  map[int64]*domain.Post
	nextID int64

	// Call tracking for verification
	calls map[string]int

	// TxCount counts WithTx calls
	TxCount int
}

var _ store.PostStore = (*MockPostStore)(nil)

// NewMockPostStore returns a store preloaded with posts.
func NewMockPostStore(posts ...*domain.Post) *MockPostStore {
	m := &MockPostStore{}
	for _, p := range posts {
		m.put(p)
	}
	return m
}

func (m *MockPostStore) put(p *domain.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.posts == nil {
		m.posts = make(map[int64]*domain.Post)
	}
	cp := *p
	m.posts[p.ID] = &cp
	if p.ID > m.nextID {
		m.nextID = p.ID
	}
}

func (m *MockPostStore) track(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns the number of calls to the named method.
func (m *MockPostStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Post returns a copy of the stored post, or nil.
func (m *MockPostStore) Post(id int64) *domain.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Create implements store.PostStore.Create
func (m *MockPostStore) Create(ctx context.Context, post *domain.Post) error {
	m.track("Create")
	if m.CreateFn != nil {
		return m.CreateFn(ctx, post)
	}
	if err := post.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	m.mu.Lock()
	m.nextID++
	post.ID = m.nextID
	m.mu.Unlock()

	m.put(post)
	return nil
}

// GetByID implements store.PostStore.GetByID
func (m *MockPostStore) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	m.track("GetByID")
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	if p := m.Post(id); p != nil {
		return p, nil
	}
	return nil, store.ErrPostNotFound
}

// UpdateContent implements store.PostStore.UpdateContent
func (m *MockPostStore) UpdateContent(ctx context.Context, id int64, title, body string) error {
	m.track("UpdateContent")
	if m.UpdateContentFn != nil {
		return m.UpdateContentFn(ctx, id, title, body)
	}
	return m.mutate(id, func(p *domain.Post) {
		p.Title = title
		p.Body = body
		p.SummaryStatus = domain.SummaryStatusPending
	})
}

// MarkCompleted implements store.PostStore.MarkCompleted
func (m *MockPostStore) MarkCompleted(ctx context.Context, id int64, summary string) error {
	m.track("MarkCompleted")
	if m.MarkCompletedFn != nil {
		return m.MarkCompletedFn(ctx, id, summary)
	}
	return m.mutate(id, func(p *domain.Post) {
		s := summary
		p.Summary = &s
		p.SummaryStatus = domain.SummaryStatusCompleted
	})
}

// MarkPending implements store.PostStore.MarkPending
func (m *MockPostStore) MarkPending(ctx context.Context, id int64) error {
	m.track("MarkPending")
	if m.MarkPendingFn != nil {
		return m.MarkPendingFn(ctx, id)
	}
	return m.mutate(id, func(p *domain.Post) {
		p.SummaryStatus = domain.SummaryStatusPending
	})
}

// ListPendingIDs implements store.PostStore.ListPendingIDs
func (m *MockPostStore) ListPendingIDs(ctx context.Context, limit int) ([]int64, error) {
	m.track("ListPendingIDs")
	if m.ListPendingIDsFn != nil {
		return m.ListPendingIDsFn(ctx, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0)
	for id := int64(1); id <= m.nextID && len(ids) < limit; id++ {
		if p, ok := m.posts[id]; ok && p.SummaryStatus == domain.SummaryStatusPending {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// CountByStatus implements store.PostStore.CountByStatus
func (m *MockPostStore) CountByStatus(ctx context.Context) (map[domain.SummaryStatus]int64, error) {
	m.track("CountByStatus")
	if m.CountByStatusFn != nil {
		return m.CountByStatusFn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[domain.SummaryStatus]int64{
		domain.SummaryStatusPending:   0,
		domain.SummaryStatusCompleted: 0,
	}
	for _, p := range m.posts {
		counts[p.SummaryStatus]++
	}
	return counts, nil
}

// WithTx implements store.PostStore.WithTx. The mock is returned unchanged.
func (m *MockPostStore) WithTx(tx *sql.Tx) store.PostStore {
	m.mu.Lock()
	m.TxCount++
	m.mu.Unlock()
	return m
}

func (m *MockPostStore) mutate(id int64, fn func(p *domain.Post)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return store.ErrPostNotFound
	}
	fn(p)
	return nil
}
