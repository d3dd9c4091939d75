package events

import (
	"time"

	"google.golang.org/grpc/codes"
)

// SubgraphStart is emitted before a request is sent to a subgraph over HTTP.
type SubgraphStart struct {
	Service       string
	URL           string
	OperationName string
}

// SubgraphFinish is emitted after a subgraph request completes.
type SubgraphFinish struct {
	Service       string
	URL           string
	OperationName string
	Status        int
	Err           error
	Duration      time.Duration
}

// GRPCClientStart is emitted before a subgraph request is sent over gRPC.
// Target is the endpoint picked for the call.
type GRPCClientStart struct {
	Service       string
	OperationName string
	Method        string
	Target        string
}

type GRPCClientFinish struct {
	Service       string
	OperationName string
	Method        string
	Target        string
	Code          codes.Code
	Err           error
	Duration      time.Duration
}
