// Package dnntrace wires OpenTelemetry tracing the same way the
// teacher's cmd/fletcher/main.go initTracer does — a stdout exporter,
// a batching tracer provider, and a resource tagged with the service
// name — parameterized here for dnncore instead of fletcher, and with
// one span per import phase (descriptor build, binary/text parse,
// legacy stream read, graph lowering) instead of per-request spans.
package dnntrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Import phase span names, in pipeline order.
const (
	PhaseDescriptorBuild = "descriptor_build"
	PhaseBinaryParse     = "binary_parse"
	PhaseTextParse       = "text_parse"
	PhaseLegacyRead      = "legacy_stream_read"
	PhaseGraphLowering   = "graph_lowering"
)

// Init installs a stdout-exporting tracer provider as the global
// tracer, tagged with serviceName, and returns its shutdown func. Only
// called when the CLI's -otel flag is set; untraced imports never pay
// for span bookkeeping.
func Init(serviceName string) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}

func tracer() trace.Tracer { return otel.Tracer("dnncore") }

// StartPhase opens a span for one import phase. Callers end it with
// the returned span's End(), typically via defer.
func StartPhase(ctx context.Context, phase string) (context.Context, trace.Span) {
	return tracer().Start(ctx, phase)
}
