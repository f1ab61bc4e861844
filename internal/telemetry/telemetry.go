// Package telemetry provides optional OpenTelemetry tracing for upstream
// Prometheus calls. Tracing is activated only when the standard
// OTEL_EXPORTER_OTLP_ENDPOINT environment variable is set; otherwise every
// entry point is a no-op.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jgato/mcp-prometheus-alerts"

// tracingEnabled is set only when an exporter endpoint is configured and the
// tracer provider initialized successfully.
var tracingEnabled atomic.Bool

// Enabled returns true if OpenTelemetry tracing is active.
func Enabled() bool {
	return tracingEnabled.Load()
}

// Init configures the global tracer provider when OTEL_EXPORTER_OTLP_ENDPOINT
// is set. The returned shutdown function flushes pending spans; it is safe to
// call even when tracing stayed disabled.
func Init(ctx context.Context, serviceName, serviceVersion string) (func(context.Context) error, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	tracingEnabled.Store(true)

	return func(ctx context.Context) error {
		tracingEnabled.Store(false)
		return provider.Shutdown(ctx)
	}, nil
}

// StartSpan opens a span for one upstream fetch. When tracing is disabled the
// global no-op provider makes this free.
func StartSpan(ctx context.Context, name, serverName string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient))
	if serverName != "" {
		span.SetAttributes(attribute.String("prometheus.server", serverName))
	}
	return ctx, span
}
