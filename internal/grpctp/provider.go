package grpctp

import (
	"context"
	"sync"
)

// EndpointProvider lists reachable endpoints (host:port or a gRPC target)
// for a subgraph name. Implementations may integrate with service discovery
// and must be safe for concurrent use.
type EndpointProvider interface {
	Endpoints(ctx context.Context, subgraph string) ([]string, error)
}

// StaticEndpoints is a provider backed by an in-memory map from subgraph
// name to endpoints. Set replaces a subgraph's endpoints at runtime.
type StaticEndpoints struct {
	mu   sync.RWMutex
	data map[string][]string
}

func NewStaticEndpoints(m map[string][]string) *StaticEndpoints {
	cp := make(map[string][]string, len(m))
	for k, v := range m {
		cp[k] = append([]string(nil), v...)
	}
	return &StaticEndpoints{data: cp}
}

func (s *StaticEndpoints) Endpoints(_ context.Context, subgraph string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.data[subgraph]
	if len(arr) == 0 {
		return nil, ErrNoEndpoints
	}
	return append([]string(nil), arr...), nil
}

func (s *StaticEndpoints) Set(subgraph string, endpoints ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(endpoints) == 0 {
		delete(s.data, subgraph)
		return
	}
	s.data[subgraph] = append([]string(nil), endpoints...)
}

// FixedEndpoints serves the same endpoints for every subgraph. It suits a
// Transport dedicated to one subgraph.
type FixedEndpoints []string

func (f FixedEndpoints) Endpoints(context.Context, string) ([]string, error) {
	if len(f) == 0 {
		return nil, ErrNoEndpoints
	}
	return append([]string(nil), f...), nil
}
