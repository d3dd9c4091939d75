package events

import (
	"net/http"
	"time"
)

// FetchRequestStart is emitted when the fetch endpoint receives a request.
// Context carries the request context.
type FetchRequestStart struct {
	Request *http.Request
}

// FetchRequestFinish is emitted after the fetch endpoint answered. Nodes is
// the number of fetch nodes executed, more than one for a batch.
type FetchRequestFinish struct {
	Request  *http.Request
	Nodes    int
	Status   int
	Duration time.Duration
}
