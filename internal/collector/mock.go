package collector

import (
	"context"
	"fmt"
	"sync"
)

// MockFetcher serves canned pages by URL for development and testing.
type MockFetcher struct {
	Pages  map[string][]byte
	Errors map[string]error
	// Hook, when set, runs at the start of every Fetch.
	Hook func(ctx context.Context, req Request)

	mu    sync.Mutex
	calls []Request
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Hook != nil {
		m.Hook(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errors[req.URL]; ok {
		return nil, err
	}
	if page, ok := m.Pages[req.URL]; ok {
		return page, nil
	}
	return nil, fmt.Errorf("fetching %s: %w", req.URL, &StatusError{Code: 404})
}

// Calls returns the requests seen so far, in order.
func (m *MockFetcher) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}
