package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hanpama/fedfetch/internal/connector"
	"github.com/hanpama/fedfetch/internal/datapath"
	eventbus "github.com/hanpama/fedfetch/internal/eventbus"
	events "github.com/hanpama/fedfetch/internal/events"
	"github.com/hanpama/fedfetch/internal/graphql"
	"github.com/hanpama/fedfetch/internal/operation"
	"github.com/hanpama/fedfetch/internal/schema"
	"github.com/hanpama/fedfetch/internal/subgraph"
	"go.uber.org/zap"
)

// Request is one fetch to execute.
type Request struct {
	Node *Node

	// Supergraph is the client request the plan was made for. Its
	// variables feed the node's variable usages.
	Supergraph *graphql.Request
	Deferred   *DeferredFetches

	// Data is everything fetched so far and CurrentDir the position the
	// node applies at, e.g. /topProducts/@.
	Data       any
	CurrentDir datapath.Path
}

// Response holds the fetched data positioned from the response root, ready
// to be deep-merged into the accumulated data.
type Response struct {
	Data     any
	Errors   []graphql.Error
	Deferred []DeferredRecord
}

// Dispatcher executes fetch nodes. It keeps no state between calls and is
// safe for concurrent use.
type Dispatcher struct {
	supergraph *schema.Supergraph
	lookup     subgraph.Lookup
	connectors *connector.Connectors
	processor  connector.Processor
	strict     bool
	logger     *zap.Logger
}

// Ready reports whether the dispatcher accepts calls. It always does.
func (d *Dispatcher) Ready() error { return nil }

// Fetch executes req.Node. Transport failures are returned as errors;
// subgraph GraphQL errors are returned in the Response. A node whose input
// path matches nothing yields empty data without contacting the subgraph.
func (d *Dispatcher) Fetch(ctx context.Context, req *Request) (res *Response, err error) {
	node := req.Node
	semantic, transport := ServiceNames(node)
	start := time.Now()
	eventbus.Publish(ctx, events.FetchStart{
		NodeID:        node.ID,
		ServiceName:   semantic,
		OperationName: node.OperationName,
		OperationKind: string(node.OperationKind),
	})
	skipped := false
	defer func() {
		eventbus.Publish(ctx, events.FetchFinish{
			NodeID:        node.ID,
			ServiceName:   semantic,
			OperationName: node.OperationName,
			OperationKind: string(node.OperationKind),
			Skipped:       skipped,
			Err:           err,
			Duration:      time.Since(start),
		})
	}()

	vars, ok := NewVariables(
		node.Requires,
		node.VariableUsages,
		req.Data,
		req.CurrentDir,
		req.Supergraph,
		d.supergraph.Schema,
		node.InputRewrites,
		node.ContextRewrites,
	)
	if !ok {
		skipped = true
		return &Response{Data: map[string]any{}}, nil
	}

	url, ok := d.supergraph.ServiceURL(semantic)
	if !ok {
		panic(&InvariantError{What: "no service URL", Service: semantic})
	}

	subgraphSchema, _ := d.supergraph.Subgraph(semantic)
	if node.Typed != nil && subgraphSchema != nil {
		if err := operation.DebugCheck(func() error { return node.Typed.IsWellFormed(subgraphSchema) }); err != nil {
			return nil, fmt.Errorf("fetch: node %q: %w", node.ID, err)
		}
	}

	query, variables, aliased := d.operationText(node, vars, semantic, subgraphSchema)

	sreq := &subgraph.Request{
		Method: http.MethodPost,
		URL:    url,
		Body: &graphql.Request{
			Query:         query,
			OperationName: node.OperationName,
			Variables:     variables,
		},
		Supergraph:    req.Supergraph,
		ServiceName:   semantic,
		OperationKind: node.OperationKind,
		QueryHash:     node.SchemaAwareHash,
		Authorization: node.Authorization,
	}

	if node.SourceNode != nil {
		if err := d.processSource(ctx, node, semantic, req.Data, vars.InvertedPaths); err != nil {
			return nil, err
		}
	}

	svc, ok := d.lookup.Service(transport)
	if !ok {
		panic(&InvariantError{What: "no transport", Service: transport})
	}
	sres, err := svc.Call(ctx, sreq)
	if err != nil {
		return nil, fmt.Errorf("fetch: subgraph %q: %w", semantic, err)
	}
	if sres == nil {
		sres = &graphql.Response{}
	}

	out := &Response{}
	if node.IsEntityFetch() {
		out.Data = mergeEntities(d.supergraph.Schema, entities(sres.Data, aliased), vars.InvertedPaths, node.OutputRewrites)
		out.Errors = remapErrors(sres.Errors, semantic, req.CurrentDir, vars.InvertedPaths, aliased)
	} else {
		out.Data = mergeRoot(d.supergraph.Schema, sres.Data, req.CurrentDir, node.OutputRewrites)
		out.Errors = remapErrors(sres.Errors, semantic, req.CurrentDir, nil, 0)
	}

	if node.ID != "" && req.Deferred.Has(node.ID) {
		rec := DeferredRecord{NodeID: node.ID, Data: datapath.Clone(out.Data), Errors: out.Errors}
		req.Deferred.record(rec)
		out.Deferred = append(out.Deferred, rec)
	}
	return out, nil
}

// operationText returns the query to send with its variables. With
// contextual arguments it tries the aliased form and falls back to the
// node's operation when that fails. aliased is the number of aliased root
// fields, zero when the operation is sent as planned.
func (d *Dispatcher) operationText(node *Node, vars *Variables, service string, s *schema.Schema) (string, map[string]any, int) {
	args := vars.ContextualArguments
	if args == nil {
		return node.Operation, vars.Variables, 0
	}
	if s == nil {
		d.logger.Debug("no subgraph schema for aliasing", zap.String("service", service))
		return node.Operation, vars.Variables, 0
	}
	text, err := BuildOperationWithAliasing(node.Operation, args, s)
	if err != nil {
		d.logger.Debug("aliased operation rejected, sending it unaliased",
			zap.String("service", service),
			zap.String("node", node.ID),
			zap.Error(err),
		)
		return node.Operation, vars.Variables, 0
	}
	if !node.IsEntityFetch() {
		return text, vars.Variables, 0
	}
	return text, splitRepresentations(vars.Variables, args.Count), args.Count
}

// processSource runs connector pre-processing. Failures are logged and
// published as ConnectorError events; with strict connectors they fail the
// fetch instead.
func (d *Dispatcher) processSource(ctx context.Context, node *Node, service string, data any, paths [][]datapath.Path) error {
	if d.processor == nil {
		return nil
	}
	prepared, err := d.processor.Process(ctx, node.SourceNode, d.connectors, data, paths)
	if err == nil {
		if prepared != nil {
			d.logger.Debug("connector requests prepared",
				zap.String("connector", node.SourceNode.ConnectorID),
				zap.Int("requests", len(prepared.Requests)),
			)
		}
		return nil
	}
	if d.strict {
		return fmt.Errorf("fetch: connector %q: %w", node.SourceNode.ConnectorID, err)
	}
	d.logger.Warn("connector pre-processing failed",
		zap.String("service", service),
		zap.String("connector", node.SourceNode.ConnectorID),
		zap.Error(err),
	)
	eventbus.Publish(ctx, events.ConnectorError{
		NodeID:    node.ID,
		Service:   service,
		Connector: node.SourceNode.ConnectorID,
		Err:       err,
	})
	return nil
}
