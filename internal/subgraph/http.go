package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	eventbus "github.com/hanpama/fedfetch/internal/eventbus"
	events "github.com/hanpama/fedfetch/internal/events"
	"github.com/hanpama/fedfetch/internal/graphql"
	"github.com/hanpama/fedfetch/internal/reqctx"
)

// HTTPOptions configures HTTPService.
//
// Defaults:
// - Client:       a new http.Client
// - Timeout:      30s (used only if the incoming context has no deadline)
// - MaxBodyBytes: 32 MiB
type HTTPOptions struct {
	Client       *http.Client
	Timeout      time.Duration
	MaxBodyBytes int64
	Header       http.Header
}

type HTTPOption func(*HTTPOptions)

func WithHTTPClient(c *http.Client) HTTPOption   { return func(o *HTTPOptions) { o.Client = c } }
func WithHTTPTimeout(d time.Duration) HTTPOption { return func(o *HTTPOptions) { o.Timeout = d } }
func WithMaxResponseBytes(n int64) HTTPOption    { return func(o *HTTPOptions) { o.MaxBodyBytes = n } }
func WithHeader(key, value string) HTTPOption {
	return func(o *HTTPOptions) {
		if o.Header == nil {
			o.Header = http.Header{}
		}
		o.Header.Add(key, value)
	}
}

// HTTPError reports a subgraph answering with a non-2xx status and a body
// that is not a GraphQL response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("subgraph: unexpected status %d: %s", e.Status, e.Body)
}

// ErrResponseTooLarge is returned when a response exceeds MaxBodyBytes.
var ErrResponseTooLarge = errors.New("subgraph: response too large")

// HTTPService sends GraphQL-over-HTTP requests. The target URL comes from
// each request.
type HTTPService struct {
	opts *HTTPOptions
}

var _ Service = (*HTTPService)(nil)

func NewHTTPService(opts ...HTTPOption) *HTTPService {
	o := &HTTPOptions{
		Timeout:      30 * time.Second,
		MaxBodyBytes: 32 << 20,
	}
	for _, f := range opts {
		f(o)
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	return &HTTPService{opts: o}
}

func (s *HTTPService) Call(ctx context.Context, req *Request) (res *graphql.Response, err error) {
	if _, ok := ctx.Deadline(); !ok && s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	opName := ""
	if req.Body != nil {
		opName = req.Body.OperationName
	}
	status := 0
	start := time.Now()
	eventbus.Publish(ctx, events.SubgraphStart{Service: req.ServiceName, URL: req.URL, OperationName: opName})
	defer func() {
		eventbus.Publish(ctx, events.SubgraphFinish{
			Service:       req.ServiceName,
			URL:           req.URL,
			OperationName: opName,
			Status:        status,
			Err:           err,
			Duration:      time.Since(start),
		})
	}()

	body, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("subgraph: encode request: %w", err)
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range s.opts.Header {
		hreq.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range req.Header {
		hreq.Header[k] = append([]string(nil), vs...)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/graphql-response+json, application/json")
	if rid, ok := reqctx.FromContext(ctx); ok {
		hreq.Header.Set(reqctx.Header, rid)
	}

	hres, err := s.opts.Client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer hres.Body.Close()
	status = hres.StatusCode

	raw, err := io.ReadAll(io.LimitReader(hres.Body, s.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > s.opts.MaxBodyBytes {
		return nil, ErrResponseTooLarge
	}

	res, err = graphql.DecodeResponse(raw)
	if hres.StatusCode < 200 || hres.StatusCode > 299 {
		// GraphQL-over-HTTP allows 4xx/5xx with a well-formed body.
		if err == nil && (res.Data != nil || len(res.Errors) > 0) {
			return res, nil
		}
		return nil, &HTTPError{Status: hres.StatusCode, Body: truncate(string(raw), 512)}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
