package connector

import (
	"context"
	"sync"

	"github.com/hanpama/fedfetch/internal/datapath"
)

// MockProcessor records calls and returns a fixed result.
type MockProcessor struct {
	Prepared *Prepared
	Err      error

	mu    sync.Mutex
	calls []*SourceNode
}

var _ Processor = (*MockProcessor)(nil)

func (m *MockProcessor) Process(_ context.Context, node *SourceNode, _ *Connectors, _ any, _ [][]datapath.Path) (*Prepared, error) {
	m.mu.Lock()
	m.calls = append(m.calls, node)
	m.mu.Unlock()
	return m.Prepared, m.Err
}

func (m *MockProcessor) Calls() []*SourceNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*SourceNode(nil), m.calls...)
}
