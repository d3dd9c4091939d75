package events

import "time"

// FetchStart is emitted before a fetch node is dispatched.
type FetchStart struct {
	NodeID        string
	ServiceName   string
	OperationName string
	OperationKind string
}

// FetchFinish is emitted after a fetch node completes. Skipped is set when no
// entity matched the node's input path and no subgraph was contacted.
type FetchFinish struct {
	NodeID        string
	ServiceName   string
	OperationName string
	OperationKind string
	Skipped       bool
	Err           error
	Duration      time.Duration
}

// ConnectorError is emitted when connector pre-processing fails and the
// failure is not propagated to the caller.
type ConnectorError struct {
	NodeID    string
	Service   string
	Connector string
	Err       error
}
