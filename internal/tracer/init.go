package tracer

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"wealthadvisor-ai/internal/pkg/logger"
)

const ServiceName = "wealthadvisor-ai"

// InitTracer exports spans over OTLP HTTP when OTEL_ENABLED=true and returns
// the provider's shutdown. Otherwise the shutdown is a no-op.
func InitTracer(log logger.ILogger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if os.Getenv("OTEL_ENABLED") != "true" {
		log.Info("TRACER", "OpenTelemetry tracing is disabled (set OTEL_ENABLED=true to enable)", nil)
		return noop
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Warn("TRACER", "Failed to create OTLP exporter, tracing disabled", map[string]interface{}{"error": err.Error()})
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	log.Info("TRACER", "OpenTelemetry tracer initialized", map[string]interface{}{"endpoint": endpoint})

	return tp.Shutdown
}
