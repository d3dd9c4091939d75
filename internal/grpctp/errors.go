package grpctp

import "errors"

var (
	// ErrNoEndpoints indicates no endpoint is known for a subgraph.
	ErrNoEndpoints = errors.New("grpctp: no endpoints available")

	// ErrClosed is returned by calls on a closed Transport.
	ErrClosed = errors.New("grpctp: closed")

	// ErrEmptyResponse indicates the subgraph answered without a body.
	ErrEmptyResponse = errors.New("grpctp: empty response body")
)
