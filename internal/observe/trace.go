package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for all spans the bot emits,
// whether around command handling, synthesis calls or playback.
const tracerName = "github.com/nomicbot/nomic"

// Tracer returns the bot's [trace.Tracer], resolved against whatever
// TracerProvider is currently registered globally (the SDK one after
// [InitProvider], a no-op one in tests that skip it).
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan opens a span on the bot's tracer. The caller owns span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID returns the active trace ID as the request correlation
// identifier, or the empty string when ctx carries no recording span. Reply
// messages and log lines share this ID so a spoken clip can be traced back
// to the Discord message that triggered it.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default [slog.Logger] annotated with the trace_id and
// span_id of the active span, or unannotated when ctx has none.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
