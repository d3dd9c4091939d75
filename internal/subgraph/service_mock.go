package subgraph

import (
	"context"
	"sync"

	"github.com/hanpama/fedfetch/internal/graphql"
)

// MockService is a Service for tests. It records every request and answers
// with CallFunc, or with Response/Err when CallFunc is nil.
type MockService struct {
	mu    sync.Mutex
	calls []*Request

	CallFunc func(ctx context.Context, req *Request) (*graphql.Response, error)
	Response *graphql.Response
	Err      error
}

var _ Service = (*MockService)(nil)

func (m *MockService) Call(ctx context.Context, req *Request) (*graphql.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.CallFunc != nil {
		return m.CallFunc(ctx, req)
	}
	return m.Response, m.Err
}

// Calls returns the recorded requests in call order.
func (m *MockService) Calls() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Request(nil), m.calls...)
}

// CallCount returns how many times Call ran.
func (m *MockService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
