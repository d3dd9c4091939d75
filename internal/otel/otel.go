package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/fedfetch/internal/eventbus"
	events "github.com/hanpama/fedfetch/internal/events"
	"github.com/hanpama/fedfetch/internal/reqctx"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "fedfetch"

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	bus := eventbus.Default()
	if bus == nil {
		bus = eventbus.New()
		eventbus.Use(bus)
	}
	unsubscribe := Register(bus, tp.Tracer(tracerName))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Register subscribes span-producing handlers on b. Spans are correlated by
// request id: fetch spans by node id and subgraph spans by service name.
func Register(b *eventbus.Bus, tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register(b)
}

type subscriber struct {
	tracer        trace.Tracer
	httpSpans     sync.Map // rid -> trace.Span
	fetchSpans    sync.Map // rid/node -> trace.Span
	subgraphSpans sync.Map // rid/service -> trace.Span
	grpcSpans     sync.Map // rid/service -> trace.Span
}

func key(ctx context.Context, part string) string {
	rid, _ := reqctx.FromContext(ctx)
	return rid + "/" + part
}

func (s *subscriber) parent(ctx context.Context, spans ...*sync.Map) context.Context {
	rid, _ := reqctx.FromContext(ctx)
	for _, m := range spans {
		if v, ok := m.Load(rid); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	return ctx
}

func end(m *sync.Map, k string, fn func(trace.Span)) {
	v, ok := m.LoadAndDelete(k)
	if !ok {
		return
	}
	span := v.(trace.Span)
	fn(span)
	span.End()
}

func recordErr(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (s *subscriber) register(b *eventbus.Bus) func() {
	var unsubs []func()
	add := func(u func()) { unsubs = append(unsubs, u) }

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.FetchRequestStart) {
		rid, _ := reqctx.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "http.request")
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
		)
		s.httpSpans.Store(rid, span)
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.FetchRequestFinish) {
		rid, _ := reqctx.FromContext(ctx)
		end(&s.httpSpans, rid, func(span trace.Span) {
			span.SetAttributes(
				semconv.HTTPStatusCodeKey.Int(e.Status),
				attribute.Int("fetch.nodes", e.Nodes),
			)
		})
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.FetchStart) {
		_, span := s.tracer.Start(s.parent(ctx, &s.httpSpans), "fetch")
		span.SetAttributes(
			attribute.String("fetch.node_id", e.NodeID),
			attribute.String("fetch.service", e.ServiceName),
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.String("graphql.operation.type", e.OperationKind),
		)
		s.fetchSpans.Store(key(ctx, e.NodeID), span)
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.FetchFinish) {
		end(&s.fetchSpans, key(ctx, e.NodeID), func(span trace.Span) {
			span.SetAttributes(attribute.Bool("fetch.skipped", e.Skipped))
			recordErr(span, e.Err)
		})
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.ConnectorError) {
		if v, ok := s.fetchSpans.Load(key(ctx, e.NodeID)); ok {
			v.(trace.Span).AddEvent("connector.error", trace.WithAttributes(
				attribute.String("connector.id", e.Connector),
				attribute.String("error", e.Err.Error()),
			))
		}
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.SubgraphStart) {
		_, span := s.tracer.Start(s.parent(ctx, &s.httpSpans), "subgraph.request")
		span.SetAttributes(
			attribute.String("subgraph.name", e.Service),
			attribute.String("http.url", e.URL),
			attribute.String("graphql.operation.name", e.OperationName),
		)
		s.subgraphSpans.Store(key(ctx, e.Service), span)
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.SubgraphFinish) {
		end(&s.subgraphSpans, key(ctx, e.Service), func(span trace.Span) {
			if e.Status != 0 {
				span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			}
			recordErr(span, e.Err)
		})
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.GRPCClientStart) {
		_, span := s.tracer.Start(s.parent(ctx, &s.httpSpans), "grpc.client")
		span.SetAttributes(
			semconv.RPCServiceKey.String(e.Service),
			semconv.RPCMethodKey.String(e.Method),
			attribute.String("net.peer.name", e.Target),
			attribute.String("graphql.operation.name", e.OperationName),
		)
		s.grpcSpans.Store(key(ctx, e.Service), span)
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.GRPCClientFinish) {
		end(&s.grpcSpans, key(ctx, e.Service), func(span trace.Span) {
			span.SetAttributes(attribute.String("grpc.code", e.Code.String()))
			recordErr(span, e.Err)
		})
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
