package grpctp

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	eventbus "github.com/hanpama/fedfetch/internal/eventbus"
	events "github.com/hanpama/fedfetch/internal/events"
	"github.com/hanpama/fedfetch/internal/graphql"
	"github.com/hanpama/fedfetch/internal/reqctx"
	"github.com/hanpama/fedfetch/internal/subgraph"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Transport sends subgraph requests over gRPC with connection pooling and
// deadline propagation. Endpoints come from the configured EndpointProvider,
// keyed by subgraph name; without a provider the request URL is dialed.
type Transport struct {
	opts   *Options
	method protoreflect.MethodDescriptor

	mu     sync.RWMutex
	pools  map[string]*connPool // key: endpoint
	closed atomic.Bool
}

func New(opts ...Option) (*Transport, error) {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	md, err := ExecuteMethod()
	if err != nil {
		return nil, fmt.Errorf("grpctp: build descriptor: %w", err)
	}
	return &Transport{
		opts:   o,
		method: md,
		pools:  make(map[string]*connPool),
	}, nil
}

var _ subgraph.Service = (*Transport)(nil)

func (t *Transport) Call(ctx context.Context, req *subgraph.Request) (res *graphql.Response, err error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if _, ok := ctx.Deadline(); !ok && t.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RPCTimeout)
		defer cancel()
	}

	endpoint, err := t.endpoint(ctx, req)
	if err != nil {
		return nil, err
	}

	md := metadata.Pairs("x-fedfetch-service", req.ServiceName)
	if rid, ok := reqctx.FromContext(ctx); ok {
		md.Set(reqctx.Header, rid)
	}
	for k, vs := range req.Header {
		md.Append(strings.ToLower(k), vs...)
	}
	if prev, ok := metadata.FromOutgoingContext(ctx); ok {
		md = metadata.Join(prev, md)
	}
	ctx = metadata.NewOutgoingContext(ctx, md)

	in, err := t.encodeRequest(req)
	if err != nil {
		return nil, err
	}

	cc, err := t.getConn(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer t.returnConn(endpoint, cc)

	fullMethod := fmt.Sprintf("/%s/%s", t.method.Parent().FullName(), t.method.Name())
	opName := ""
	if req.Body != nil {
		opName = req.Body.OperationName
	}
	start := time.Now()
	eventbus.Publish(ctx, events.GRPCClientStart{
		Service:       req.ServiceName,
		OperationName: opName,
		Method:        string(t.method.Name()),
		Target:        endpoint,
	})
	out := dynamicpb.NewMessage(t.method.Output())
	err = cc.Invoke(ctx, fullMethod, in, out)
	eventbus.Publish(ctx, events.GRPCClientFinish{
		Service:       req.ServiceName,
		OperationName: opName,
		Method:        string(t.method.Name()),
		Target:        endpoint,
		Code:          status.Code(err),
		Err:           err,
		Duration:      time.Since(start),
	})
	if err != nil {
		return nil, err
	}
	return t.decodeResponse(out)
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pools {
		p.close()
	}
	t.pools = map[string]*connPool{}
	return nil
}

func (t *Transport) endpoint(ctx context.Context, req *subgraph.Request) (string, error) {
	if t.opts.Provider == nil {
		target := strings.TrimPrefix(req.URL, "grpc://")
		if target == "" {
			return "", ErrNoEndpoints
		}
		return target, nil
	}
	endpoints, err := t.opts.Provider.Endpoints(ctx, req.ServiceName)
	if err != nil {
		return "", err
	}
	if len(endpoints) == 0 {
		return "", ErrNoEndpoints
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

func (t *Transport) encodeRequest(req *subgraph.Request) (protoreflect.Message, error) {
	msg := dynamicpb.NewMessage(t.method.Input())
	fields := t.method.Input().Fields()
	set := func(name protoreflect.Name, v string) {
		if v != "" {
			msg.Set(fields.ByName(name), protoreflect.ValueOfString(v))
		}
	}
	if req.Body != nil {
		set("query", req.Body.Query)
		set("operation_name", req.Body.OperationName)
		if len(req.Body.Variables) > 0 {
			vars, err := json.Marshal(req.Body.Variables)
			if err != nil {
				return nil, fmt.Errorf("grpctp: encode variables: %w", err)
			}
			set("variables_json", string(vars))
		}
	}
	set("operation_kind", string(req.OperationKind))
	set("query_hash", req.QueryHash)
	set("service_name", req.ServiceName)
	return msg, nil
}

func (t *Transport) decodeResponse(out protoreflect.Message) (*graphql.Response, error) {
	body := out.Get(t.method.Output().Fields().ByName("body_json")).String()
	if body == "" {
		return nil, ErrEmptyResponse
	}
	return graphql.DecodeResponse([]byte(body))
}

// ---------------- internals ----------------

type connPool struct {
	endpoint string
	opts     *Options
	conns    chan *grpc.ClientConn
	closed   atomic.Bool
}

func newConnPool(endpoint string, opts *Options) *connPool {
	n := opts.MaxConnsPerEndpoint
	if n <= 0 {
		n = 2
	}
	return &connPool{
		endpoint: endpoint,
		opts:     opts,
		conns:    make(chan *grpc.ClientConn, n),
	}
}

func (p *connPool) get() (*grpc.ClientConn, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case cc := <-p.conns:
		return cc, nil
	default:
		return grpc.NewClient(p.endpoint, p.opts.DialOptions...)
	}
}

func (p *connPool) put(cc *grpc.ClientConn) {
	if cc == nil || p.closed.Load() {
		if cc != nil {
			_ = cc.Close()
		}
		return
	}
	select {
	case p.conns <- cc:
	default:
		_ = cc.Close()
	}
}

func (p *connPool) close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.conns)
	for cc := range p.conns {
		_ = cc.Close()
	}
}

func (t *Transport) getConn(_ context.Context, endpoint string) (*grpc.ClientConn, error) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool == nil {
		t.mu.Lock()
		pool = t.pools[endpoint]
		if pool == nil {
			pool = newConnPool(endpoint, t.opts)
			t.pools[endpoint] = pool
		}
		t.mu.Unlock()
	}
	return pool.get()
}

func (t *Transport) returnConn(endpoint string, cc *grpc.ClientConn) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool != nil {
		pool.put(cc)
		return
	}
	_ = cc.Close()
}
