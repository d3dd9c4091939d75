// Package server exposes fetch node execution over HTTP.
//
// A client POSTs a fetch node together with the data fetched so far and the
// position the node applies to; the handler runs it through a fetch
// dispatcher and answers with the node's sparse response tree.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hanpama/fedfetch/internal/datapath"
	eventbus "github.com/hanpama/fedfetch/internal/eventbus"
	events "github.com/hanpama/fedfetch/internal/events"
	"github.com/hanpama/fedfetch/internal/fetch"
	"github.com/hanpama/fedfetch/internal/graphql"
	"github.com/hanpama/fedfetch/internal/reqctx"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"
)

// Fetcher executes one fetch node. *fetch.Dispatcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req *fetch.Request) (*fetch.Response, error)
}

// Handler is an http.Handler that executes fetch nodes.
type Handler struct {
	fetcher Fetcher
	opt     Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers to forward into gRPC metadata.
	// Header names are case-insensitive. Default is none.
	MetadataHeaders []string

	Logger *zap.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.Logger = l } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a handler that runs fetches through f.
func New(f Fetcher, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, fn := range opts {
		fn(&op)
	}
	if op.Logger == nil {
		op.Logger = zap.NewNop()
	}
	return &Handler{fetcher: f, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqctx.WithID(ctx, r.Header.Get(reqctx.Header))
	w.Header().Set(reqctx.Header, rid)
	status := http.StatusOK
	nodes := 0
	start := time.Now()
	eventbus.Publish(ctx, events.FetchRequestStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.FetchRequestFinish{Request: r, Nodes: nodes, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	// Map configured headers into metadata
	if len(h.opt.MetadataHeaders) > 0 {
		md := metadata.MD{}
		allowed := make(map[string]struct{}, len(h.opt.MetadataHeaders))
		for _, hdr := range h.opt.MetadataHeaders {
			allowed[strings.ToLower(hdr)] = struct{}{}
		}
		for k, v := range r.Header {
			if _, ok := allowed[strings.ToLower(k)]; ok {
				md[strings.ToLower(k)] = v
			}
		}
		ctx = metadata.NewOutgoingContext(ctx, md)
	}

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status = http.StatusBadRequest
		if berr.Error() == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(berr.Error()), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch != nil {
		nodes = len(batch)
		out := make([]Result, len(batch))
		for i := range batch {
			out[i], _ = h.executeOne(ctx, batch[i])
		}
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}

	nodes = 1
	res, st := h.executeOne(ctx, req)
	status = st
	writeJSON(w, status, res, h.opt.Pretty)
}

func (h *Handler) executeOne(ctx context.Context, req FetchRequest) (res Result, status int) {
	defer func() {
		if r := recover(); r != nil {
			var inv *fetch.InvariantError
			if err, ok := r.(error); !ok || !errors.As(err, &inv) {
				panic(r)
			}
			h.opt.Logger.Error("fetch node rejected", zap.String("node", req.Node.ID), zap.Error(inv))
			res, status = errorResponse(inv.Error()), http.StatusInternalServerError
		}
	}()

	out, err := h.fetcher.Fetch(ctx, &fetch.Request{
		Node:       req.Node,
		Supergraph: req.Request,
		Data:       req.Data,
		CurrentDir: req.CurrentDir,
	})
	if err != nil {
		h.opt.Logger.Warn("fetch failed", zap.String("node", req.Node.ID), zap.Error(err))
		return errorResponse(err.Error()), http.StatusBadGateway
	}
	return Result{Data: out.Data, Errors: out.Errors}, http.StatusOK
}

// ------------------ Request parsing ------------------

// FetchRequest is the body of a fetch call.
type FetchRequest struct {
	Node *fetch.Node `json:"node"`
	// Data is the response tree fetched so far.
	Data any `json:"data,omitempty"`
	// CurrentDir is the position in Data the node applies to.
	CurrentDir datapath.Path `json:"currentDir,omitempty"`
	// Request is the client request the plan was made for.
	Request *graphql.Request `json:"request,omitempty"`
}

var errMissingNode = errors.New("missing 'node'")

func parseRequest(r *http.Request, maxBody int64) (FetchRequest, []FetchRequest, error) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return FetchRequest{}, nil, errors.New("unsupported Content-Type")
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return FetchRequest{}, nil, errors.New("failed to read body")
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return FetchRequest{}, nil, errors.New(errBodyTooLargeMessage)
	}

	// Try array (batch)
	if len(body) > 0 && body[0] == '[' {
		var arr []FetchRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return FetchRequest{}, nil, invalidJSON(err)
		}
		if len(arr) == 0 {
			return FetchRequest{}, nil, errors.New("empty batch")
		}
		for i := range arr {
			if err := arr[i].normalize(); err != nil {
				return FetchRequest{}, nil, err
			}
		}
		return FetchRequest{}, arr, nil
	}
	// Single
	var req FetchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return FetchRequest{}, nil, invalidJSON(err)
	}
	if err := req.normalize(); err != nil {
		return FetchRequest{}, nil, err
	}
	return req, nil, nil
}

func (req *FetchRequest) normalize() error {
	if req.Node == nil {
		return errMissingNode
	}
	if req.Request == nil {
		req.Request = &graphql.Request{}
	}
	if req.Request.Variables == nil {
		req.Request.Variables = map[string]any{}
	}
	return nil
}

func invalidJSON(err error) error { return errors.New("invalid JSON: " + err.Error()) }

// ------------------ Response formatting ------------------

// Result is the body of a fetch response.
type Result struct {
	Data   any             `json:"data"`
	Errors []graphql.Error `json:"errors,omitempty"`
}

func errorResponse(msg string) Result {
	return Result{Errors: []graphql.Error{{Message: msg}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

const errBodyTooLargeMessage = "body too large"

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
