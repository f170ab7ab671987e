// Package otel wires the node's tracer provider. Every call into
// core/engine's validate-apply pipeline opens one span, so a slow
// reducer call or a validation rejection shows up in trace data without
// every package importing the OpenTelemetry SDK directly.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the package-wide tracer name every span in the node is opened
// under.
const Tracer = "github.com/clawnet/clawnet"

// Setup installs a tracer provider tagged with the given service name and
// node id as the global provider, and returns a shutdown function the
// caller must invoke before exit to flush any buffered spans. Exporters are
// deliberately not wired here: a node operator attaches one (OTLP, stdout,
// or none) by composing sdktrace.WithBatcher in their own main, keeping
// this package exporter-agnostic.
func Setup(serviceName, nodeID string, opts ...sdktrace.TracerProviderOption) (func(context.Context) error, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceInstanceID(nodeID),
		),
	)
	if err != nil {
		return nil, err
	}
	allOpts := append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)
	provider := sdktrace.NewTracerProvider(allOpts...)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// StartSpan opens a span named name under the package tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(Tracer).Start(ctx, name, opts...)
}
