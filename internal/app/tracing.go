package app

import (
	"context"
	"fmt"

	"github.com/vadimbarashkov/shorturl/internal/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/vadimbarashkov/shorturl"

// newTracer returns a tracer exporting over OTLP/gRPC, or a no-op tracer when
// no endpoint is configured. The returned shutdown func flushes pending spans.
func newTracer(ctx context.Context, cfg config.Tracing) (trace.Tracer, func(context.Context) error, error) {
	const op = "app.newTracer"

	if cfg.Endpoint == "" {
		return noop.NewTracerProvider().Tracer(tracerName), func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to create exporter: %w", op, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
	)

	return tp.Tracer(tracerName), tp.Shutdown, nil
}
