// Package otel wires OpenTelemetry tracing to the event stream. Spans are
// opened and closed by eventbus subscribers, so the server, loader and store
// layers stay free of tracing concerns.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/openmerce/catalogql/internal/eventbus"
	"github.com/openmerce/catalogql/internal/events"
	"github.com/openmerce/catalogql/internal/reqid"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
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

	sub := &subscriber{tracer: otel.Tracer("catalogql")}
	sub.register()

	return tp.Shutdown, nil
}

type subscriber struct {
	tracer      trace.Tracer
	httpSpans   sync.Map // rid -> trace.Span
	gqlSpans    sync.Map // rid -> trace.Span
	loaderSpans sync.Map // rid + loader -> trace.Span
	storeSpans  sync.Map // rid + op -> trace.Span
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "http.request")
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
		)
		s.httpSpans.Store(rid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.httpSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
		rid, _ := reqid.FromContext(ctx)
		parent := ctx
		if v, ok := s.httpSpans.Load(rid); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "graphql.operation")
		span.SetAttributes(
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.String("graphql.operation.type", e.OperationType),
		)
		s.gqlSpans.Store(rid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.gqlSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.LoaderBatchStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(s.operationContext(ctx, rid), "loader.batch")
		span.SetAttributes(
			attribute.String("loader.name", e.Loader),
			attribute.Int("loader.keys", e.Keys),
		)
		s.loaderSpans.Store(rid+"/"+e.Loader, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.LoaderBatchFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.loaderSpans.LoadAndDelete(rid + "/" + e.Loader)
		if !ok {
			return
		}
		span := v.(trace.Span)
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.StoreQueryStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(s.operationContext(ctx, rid), "store.query")
		span.SetAttributes(attribute.String("db.operation", e.Op))
		s.storeSpans.Store(rid+"/"+e.Op, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.StoreQueryFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.storeSpans.LoadAndDelete(rid + "/" + e.Op)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(attribute.Int("db.rows", e.Rows))
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})
}

// operationContext parents a child span on the innermost open span of the
// request: the GraphQL operation when one is running, else the HTTP request.
func (s *subscriber) operationContext(ctx context.Context, rid string) context.Context {
	if v, ok := s.gqlSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}
