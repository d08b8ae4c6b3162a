// Package tracing builds the Manager's tracer provider: a real OTLP/HTTP
// exporter with the SDK's batch processor when an endpoint is configured,
// and a no-op tracer otherwise.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Provider wraps the configured tracer provider and its shutdown hook.
type Provider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
}

// New builds a Provider for manager.Options.Tracer. With an empty endpoint
// it returns a zero-overhead no-op tracer; otherwise it exports spans over
// OTLP/HTTP using the SDK's batch span processor.
func New(ctx context.Context, endpoint, serviceName string) (*Provider, error) {
	if endpoint == "" {
		return &Provider{tracer: noop.NewTracerProvider().Tracer("manager")}, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	if serviceName == "" {
		serviceName = "claudia"
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	return &Provider{sdk: sdk, tracer: sdk.Tracer(serviceName)}, nil
}

// Tracer returns the tracer to pass into manager.Options.Tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes pending spans. A no-op provider has nothing to flush.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
