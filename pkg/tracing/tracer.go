// Package tracing provides a shared OTel tracer helper for the domain packages.
//
// When no TracerProvider is registered (tests, local runs without OTel) the
// global no-op provider is used and all calls are inert.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "benchcom"

// Start creates a new OTel span as a child of the span in ctx, or a root span
// when ctx carries no active span. The caller must call span.End().
//
//	ctx, span := tracing.Start(ctx, "stats.refresh",
//	    attribute.String("benchcom.cpu_model", scope.CPUModel),
//	)
//	defer span.End()
func Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// Fail records err on span and marks the span as failed. A nil err is ignored.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
