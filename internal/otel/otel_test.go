package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	eventbus "github.com/hanpama/fedfetch/internal/eventbus"
	events "github.com/hanpama/fedfetch/internal/events"
	"github.com/hanpama/fedfetch/internal/reqctx"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc/codes"
)

func TestRegisterFetchSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	bus := eventbus.New()
	unsubscribe := Register(bus, tp.Tracer("test"))

	ctx, _ := reqctx.NewContext(context.Background())
	eventbus.PublishTo(bus, ctx, events.FetchStart{NodeID: "1", ServiceName: "reviews", OperationKind: "query"})
	eventbus.PublishTo(bus, ctx, events.SubgraphStart{Service: "reviews", URL: "http://reviews"})
	eventbus.PublishTo(bus, ctx, events.SubgraphFinish{Service: "reviews", Status: 502, Err: errors.New("bad gateway")})
	eventbus.PublishTo(bus, ctx, events.FetchFinish{NodeID: "1", ServiceName: "reviews"})

	ended := rec.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, "subgraph.request", ended[0].Name())
	require.Equal(t, otelcodes.Error, ended[0].Status().Code)
	require.Equal(t, "fetch", ended[1].Name())
	require.Equal(t, otelcodes.Unset, ended[1].Status().Code)

	unsubscribe()
	eventbus.PublishTo(bus, ctx, events.FetchStart{NodeID: "2"})
	eventbus.PublishTo(bus, ctx, events.FetchFinish{NodeID: "2"})
	require.Len(t, rec.Ended(), 2)
}

func TestRegisterSpansPerRequest(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	bus := eventbus.New()
	defer Register(bus, tp.Tracer("test"))()

	a, _ := reqctx.NewContext(context.Background())
	b, _ := reqctx.NewContext(context.Background())
	eventbus.PublishTo(bus, a, events.FetchStart{NodeID: "0"})
	eventbus.PublishTo(bus, b, events.FetchStart{NodeID: "0"})
	eventbus.PublishTo(bus, b, events.FetchFinish{NodeID: "0", Skipped: true})

	require.Len(t, rec.Ended(), 1)
	require.Len(t, rec.Started(), 2)
}

func TestRegisterEndpointSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	bus := eventbus.New()
	defer Register(bus, tp.Tracer("test"))()

	ctx, _ := reqctx.NewContext(context.Background())
	r := httptest.NewRequest("POST", "/fetch", nil)
	eventbus.PublishTo(bus, ctx, events.FetchRequestStart{Request: r})
	eventbus.PublishTo(bus, ctx, events.GRPCClientStart{Service: "reviews", OperationName: "Reviews", Method: "Execute", Target: "reviews:9000"})
	eventbus.PublishTo(bus, ctx, events.GRPCClientFinish{Service: "reviews", Code: codes.Unavailable, Err: errors.New("unavailable")})
	eventbus.PublishTo(bus, ctx, events.FetchRequestFinish{Request: r, Nodes: 1, Status: 502})

	ended := rec.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, "grpc.client", ended[0].Name())
	require.Equal(t, otelcodes.Error, ended[0].Status().Code)
	require.Equal(t, "http.request", ended[1].Name())
	require.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup("", "fedfetch")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
