// Package tracing holds the OpenTelemetry tracer and HTTP middleware.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lexgate")

// GetTracer returns the application tracer for creating spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "query.route")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}
