// Package tracing provides OpenTelemetry tracing integration.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the market-watch application.
var tracer = otel.Tracer("market-watch")

// GetTracer returns the global tracer for creating spans.
// This tracer can be used throughout the application to create new spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// InitTracer installs a local span processor pipeline as the global trace
// provider and returns a shutdown function for graceful termination. Without
// an exporter configured the spans stay in-process; wiring an OTLP exporter is
// a deployment concern.
func InitTracer() func(context.Context) error {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
