// Package fetch executes single fetch nodes of a federated query plan.
//
// A Dispatcher resolves the variables of a node from the data gathered so
// far, sends one request to the node's subgraph and returns the response
// data positioned so it can be deep-merged into the overall result. A
// Factory binds the immutable configuration dispatchers share.
package fetch

import (
	"encoding/json"
	"fmt"

	"github.com/hanpama/fedfetch/internal/connector"
	"github.com/hanpama/fedfetch/internal/datapath"
	language "github.com/hanpama/fedfetch/internal/language"
	"github.com/hanpama/fedfetch/internal/operation"
	"github.com/hanpama/fedfetch/internal/subgraph"
)

// Protocol is GraphQLProtocol or RestProtocol.
type Protocol interface {
	isProtocol()
}

// GraphQLProtocol addresses the node's subgraph directly.
type GraphQLProtocol struct{}

// RestProtocol marks a node served by a REST connector. Requests are
// attributed to ParentServiceName but sent through the transport registered
// as ConnectorServiceName.
type RestProtocol struct {
	ParentServiceName    string
	ConnectorServiceName string
}

func (GraphQLProtocol) isProtocol() {}
func (RestProtocol) isProtocol()    {}

// Node is one fetch of a query plan.
type Node struct {
	ID            string
	ServiceName   string
	Operation     string
	OperationName string
	OperationKind language.Operation

	// Requires selects the entity representations sent as $representations.
	// Empty for root fetches.
	Requires       language.SelectionSet
	VariableUsages []string

	InputRewrites   []Rewrite
	OutputRewrites  []Rewrite
	ContextRewrites []Rewrite

	Protocol        Protocol
	SourceNode      *connector.SourceNode
	SchemaAwareHash string
	Authorization   *subgraph.Authorization

	// Typed is Operation built against the subgraph schema, when available.
	// Dispatchers assert its structure in debug builds.
	Typed *operation.Operation
}

// IsEntityFetch reports whether n fetches entities through _entities.
func (n *Node) IsEntityFetch() bool { return len(n.Requires) > 0 }

type nodeJSON struct {
	ID              string                  `json:"id,omitempty"`
	ServiceName     string                  `json:"serviceName"`
	Operation       string                  `json:"operation"`
	OperationName   string                  `json:"operationName,omitempty"`
	OperationKind   string                  `json:"operationKind,omitempty"`
	Requires        string                  `json:"requires,omitempty"`
	VariableUsages  []string                `json:"variableUsages,omitempty"`
	InputRewrites   []rewriteJSON           `json:"inputRewrites,omitempty"`
	OutputRewrites  []rewriteJSON           `json:"outputRewrites,omitempty"`
	ContextRewrites []rewriteJSON           `json:"contextRewrites,omitempty"`
	Protocol        *protocolJSON           `json:"protocol,omitempty"`
	SourceNode      *connector.SourceNode   `json:"sourceNode,omitempty"`
	SchemaAwareHash string                  `json:"schemaAwareHash,omitempty"`
	Authorization   *subgraph.Authorization `json:"authorization,omitempty"`
}

type protocolJSON struct {
	Kind                 string `json:"kind"`
	ParentServiceName    string `json:"parentServiceName,omitempty"`
	ConnectorServiceName string `json:"connectorServiceName,omitempty"`
}

type rewriteJSON struct {
	Kind        string        `json:"kind"`
	Path        datapath.Path `json:"path"`
	SetValueTo  any           `json:"setValueTo,omitempty"`
	RenameKeyTo string        `json:"renameKeyTo,omitempty"`
}

// UnmarshalJSON reads the plan form of a node. Requires is GraphQL text such
// as "{ ... on User { __typename id } }".
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ServiceName == "" {
		return fmt.Errorf("fetch node %q: missing serviceName", raw.ID)
	}
	out := Node{
		ID:              raw.ID,
		ServiceName:     raw.ServiceName,
		Operation:       raw.Operation,
		OperationName:   raw.OperationName,
		OperationKind:   language.Query,
		VariableUsages:  raw.VariableUsages,
		Protocol:        GraphQLProtocol{},
		SourceNode:      raw.SourceNode,
		SchemaAwareHash: raw.SchemaAwareHash,
		Authorization:   raw.Authorization,
	}
	if raw.OperationKind != "" {
		out.OperationKind = language.Operation(raw.OperationKind)
	}
	if raw.Requires != "" {
		ss, err := language.ParseSelectionSet(raw.Requires)
		if err != nil {
			return fmt.Errorf("fetch node %q: requires: %w", raw.ID, err)
		}
		out.Requires = ss
	}
	var err error
	if out.InputRewrites, err = decodeRewrites(raw.InputRewrites); err != nil {
		return fmt.Errorf("fetch node %q: inputRewrites: %w", raw.ID, err)
	}
	if out.OutputRewrites, err = decodeRewrites(raw.OutputRewrites); err != nil {
		return fmt.Errorf("fetch node %q: outputRewrites: %w", raw.ID, err)
	}
	if out.ContextRewrites, err = decodeRewrites(raw.ContextRewrites); err != nil {
		return fmt.Errorf("fetch node %q: contextRewrites: %w", raw.ID, err)
	}
	if p := raw.Protocol; p != nil {
		switch p.Kind {
		case "", "graphql":
		case "rest":
			if p.ParentServiceName == "" || p.ConnectorServiceName == "" {
				return fmt.Errorf("fetch node %q: rest protocol needs parent and connector service names", raw.ID)
			}
			out.Protocol = RestProtocol{ParentServiceName: p.ParentServiceName, ConnectorServiceName: p.ConnectorServiceName}
		default:
			return fmt.Errorf("fetch node %q: unknown protocol %q", raw.ID, p.Kind)
		}
	}
	*n = out
	return nil
}

func decodeRewrites(raw []rewriteJSON) ([]Rewrite, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Rewrite, 0, len(raw))
	for _, r := range raw {
		switch r.Kind {
		case "ValueSetter":
			out = append(out, &ValueSetter{Path: r.Path, SetValueTo: r.SetValueTo})
		case "KeyRenamer":
			if r.RenameKeyTo == "" {
				return nil, fmt.Errorf("KeyRenamer at %s: missing renameKeyTo", r.Path)
			}
			out = append(out, &KeyRenamer{Path: r.Path, RenameKeyTo: r.RenameKeyTo})
		default:
			return nil, fmt.Errorf("unknown rewrite kind %q", r.Kind)
		}
	}
	return out, nil
}
