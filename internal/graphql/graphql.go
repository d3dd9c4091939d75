// Package graphql defines the GraphQL-over-HTTP wire shapes exchanged with
// clients and subgraphs.
package graphql

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Request is a GraphQL request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// Location is a line/column position in a GraphQL document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Error is a GraphQL error as found in the "errors" list of a response.
type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e Error) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Path))
	for i, p := range e.Path {
		parts[i] = fmt.Sprint(p)
	}
	return e.Message + " at " + strings.Join(parts, ".")
}

// WithExtension returns a copy of e with extensions[key] set to value.
func (e Error) WithExtension(key string, value any) Error {
	ext := make(map[string]any, len(e.Extensions)+1)
	for k, v := range e.Extensions {
		ext[k] = v
	}
	ext[key] = value
	e.Extensions = ext
	return e
}

// Response is a GraphQL response body. Data keeps the decoded JSON tree.
type Response struct {
	Data       any            `json:"data"`
	Errors     []Error        `json:"errors,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// DecodeResponse parses a response body. Numbers are decoded as float64 like
// the rest of the data tree.
func DecodeResponse(body []byte) (*Response, error) {
	var res Response
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	return &res, nil
}
