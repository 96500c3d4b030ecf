package orbitrpc

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/orbit-tracer/internal/logging"
	"github.com/signalsfoundry/orbit-tracer/internal/observability"
)

const (
	tracerName = "github.com/signalsfoundry/orbit-tracer/internal/orbitrpc"

	// RunIDMetadataKey carries a caller-chosen run ID.
	RunIDMetadataKey = "x-run-id"
)

// RunIDUnaryServerInterceptor puts a run_id and a request logger on the
// context. A non-empty x-run-id metadata value is used as the run_id.
func RunIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if id := incomingRunID(ctx); id != "" {
			ctx = logging.ContextWithRunID(ctx, id)
		}
		ctx, reqLog := logging.WithRunLogger(ctx, base.With(logging.String("method", info.FullMethod)))
		return handler(logging.ContextWithLogger(ctx, reqLog), req)
	}
}

func incomingRunID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(RunIDMetadataKey) {
		if v != "" {
			return v
		}
	}
	return ""
}

// TracingUnaryServerInterceptor renames the span opened by the otelgrpc stats
// handler to Orbit/<service>/<method> and tags it with the run_id. Without a
// stats handler it opens its own server span.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		name := "Orbit/" + service + "/" + method

		span := trace.SpanFromContext(ctx)
		owned := !span.SpanContext().IsValid()
		if owned {
			ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
		} else {
			span.SetName(name)
		}
		span.SetAttributes(rpcAttributes(ctx, info.FullMethod, service, method)...)

		resp, err := handler(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status.Code(err).String())
		}
		return resp, err
	}
}

func rpcAttributes(ctx context.Context, fullMethod, service, method string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", method),
		attribute.String("rpc.full_method", strings.TrimPrefix(fullMethod, "/")),
	}
	if id := logging.RunIDFromContext(ctx); id != "" {
		attrs = append(attrs, attribute.String("run_id", id))
	}
	return attrs
}

// ServerOptions returns the interceptor chain used by orbit-server: run ID,
// tracing, then metrics when collector is non-nil.
func ServerOptions(log logging.Logger, collector *observability.OrbitCollector) []grpc.ServerOption {
	chain := []grpc.UnaryServerInterceptor{
		RunIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	if collector != nil {
		chain = append(chain, collector.UnaryServerInterceptor())
	}
	return []grpc.ServerOption{grpc.ChainUnaryInterceptor(chain...)}
}
