// Package connector describes REST connectors that back parts of a
// supergraph and prepares the HTTP requests a connector fetch would send.
package connector

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

var ErrUnknownConnector = errors.New("connector: unknown connector")

// Connector describes one REST endpoint that resolves a field.
type Connector struct {
	ID          string            `yaml:"id"`
	ServiceName string            `yaml:"service"`
	Source      string            `yaml:"source"`
	Method      string            `yaml:"method"`
	BaseURL     string            `yaml:"base_url"`
	Path        string            `yaml:"path"`
	Header      map[string]string `yaml:"headers"`
}

// Connectors is an immutable registry of connectors keyed by ID.
type Connectors struct {
	byID map[string]*Connector
}

// NewConnectors builds a registry. IDs must be unique and non-empty.
func NewConnectors(cs ...*Connector) (*Connectors, error) {
	reg := &Connectors{byID: make(map[string]*Connector, len(cs))}
	for _, c := range cs {
		if c.ID == "" {
			return nil, fmt.Errorf("connector: missing id (service %q)", c.ServiceName)
		}
		if _, dup := reg.byID[c.ID]; dup {
			return nil, fmt.Errorf("connector: duplicate id %q", c.ID)
		}
		cp := *c
		if cp.Method == "" {
			cp.Method = http.MethodGet
		}
		reg.byID[c.ID] = &cp
	}
	return reg, nil
}

// Get returns the connector with the given ID. A nil registry is empty.
func (c *Connectors) Get(id string) (*Connector, bool) {
	if c == nil {
		return nil, false
	}
	conn, ok := c.byID[id]
	return conn, ok
}

// IDs returns the registered IDs in sorted order.
func (c *Connectors) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.byID))
	for id := range c.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SourceNode is the connector descriptor attached to a fetch node.
type SourceNode struct {
	ConnectorID string `json:"connectorId"`
	ServiceName string `json:"serviceName"`
	Field       string `json:"field,omitempty"`
}
