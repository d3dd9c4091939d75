package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hanpama/fedfetch/internal/datapath"
	"golang.org/x/sync/errgroup"
)

// Prepared holds the requests a connector fetch expands to.
type Prepared struct {
	Connector *Connector
	Requests  []PreparedRequest
}

// PreparedRequest is one HTTP request of a connector fetch. Paths are the
// response positions of the entity it resolves; they are empty for root
// fetches.
type PreparedRequest struct {
	Method string
	URL    string
	Header http.Header
	Paths  []datapath.Path
}

// Processor turns a source node and the fetched entities into connector
// requests.
type Processor interface {
	Process(ctx context.Context, node *SourceNode, connectors *Connectors, data any, paths [][]datapath.Path) (*Prepared, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, node *SourceNode, connectors *Connectors, data any, paths [][]datapath.Path) (*Prepared, error)

func (f ProcessorFunc) Process(ctx context.Context, node *SourceNode, connectors *Connectors, data any, paths [][]datapath.Path) (*Prepared, error) {
	return f(ctx, node, connectors, data, paths)
}

// TemplateError reports a path template variable that could not be
// expanded.
type TemplateError struct {
	Template string
	Var      string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("connector: template %q: {%s}: %v", e.Template, e.Var, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

var (
	errNoEntity   = errors.New("no entity in scope")
	errMissing    = errors.New("value missing")
	errNotScalar  = errors.New("value is not a scalar")
	errUnclosed   = errors.New("unclosed variable")
	errBadVarName = errors.New("unsupported variable")
)

// TemplateProcessor expands "{$this.field}" placeholders in a connector path
// with values of each entity. Entities are expanded concurrently, at most
// Concurrency at a time (unbounded when zero).
type TemplateProcessor struct {
	Concurrency int
}

var _ Processor = TemplateProcessor{}

func (p TemplateProcessor) Process(ctx context.Context, node *SourceNode, connectors *Connectors, data any, paths [][]datapath.Path) (*Prepared, error) {
	conn, ok := connectors.Get(node.ConnectorID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnector, node.ConnectorID)
	}
	header := make(http.Header, len(conn.Header))
	for k, v := range conn.Header {
		header.Set(k, v)
	}

	if len(paths) == 0 {
		u, err := expand(conn.BaseURL, conn.Path, nil, false)
		if err != nil {
			return nil, err
		}
		return &Prepared{Connector: conn, Requests: []PreparedRequest{{Method: conn.Method, URL: u, Header: header}}}, nil
	}

	reqs := make([]PreparedRequest, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if p.Concurrency > 0 {
		g.SetLimit(p.Concurrency)
	}
	for i, group := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var this any
			if len(group) > 0 {
				this, _ = datapath.Get(data, group[0])
			}
			u, err := expand(conn.BaseURL, conn.Path, this, true)
			if err != nil {
				return err
			}
			reqs[i] = PreparedRequest{Method: conn.Method, URL: u, Header: header.Clone(), Paths: group}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Prepared{Connector: conn, Requests: reqs}, nil
}

func expand(base, tmpl string, this any, hasThis bool) (string, error) {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(base, "/"))
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", &TemplateError{Template: tmpl, Var: rest[open+1:], Err: errUnclosed}
		}
		name := rest[open+1 : open+end]
		v, err := lookup(name, this, hasThis)
		if err != nil {
			return "", &TemplateError{Template: tmpl, Var: name, Err: err}
		}
		b.WriteString(url.PathEscape(v))
		rest = rest[open+end+1:]
	}
	return b.String(), nil
}

func lookup(name string, this any, hasThis bool) (string, error) {
	keys := strings.Split(name, ".")
	if keys[0] != "$this" {
		return "", errBadVarName
	}
	if !hasThis {
		return "", errNoEntity
	}
	cur := this
	for _, k := range keys[1:] {
		obj, ok := cur.(map[string]any)
		if !ok {
			return "", errMissing
		}
		if cur, ok = obj[k]; !ok || cur == nil {
			return "", errMissing
		}
	}
	switch v := cur.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", errNotScalar
	}
}
