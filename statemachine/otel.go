package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "statemachine"

// startMessageSpan creates a span covering the processing of one queued
// message. Uses the global tracer provider set up by the telemetry package.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startMessageSpan(
	ctx context.Context,
	machine, fingerprint, actorID, state string,
	event Event,
) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "statemachine.process",
		trace.WithAttributes(
			attribute.String("machine", machine),
			attribute.String("machine.fingerprint", fingerprint),
			attribute.String("actor.id", actorID),
			attribute.String("state", state),
			attribute.String("event", event.Type),
		))
}

// startInvocationSpan creates a span that lives as long as the operation.
//
//nolint:spancheck // Span lifecycle managed by caller
func startInvocationSpan(ctx context.Context, actorID, state, invocation string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "statemachine.invoke",
		trace.WithAttributes(
			attribute.String("actor.id", actorID),
			attribute.String("state", state),
			attribute.String("invocation", invocation),
		))
}

// endSpan records err (if any) and ends the span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// extractTraceContext extracts trace ID and span ID from context for logging.
func extractTraceContext(ctx context.Context) (traceID, spanID string) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()

		return spanCtx.TraceID().String(), spanCtx.SpanID().String()
	}

	return "", ""
}
