package observability

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// SetupTracing initializes OpenTelemetry tracing with a stdout exporter.
// Swap for OTLP when running behind a collector.
func SetupTracing(serviceName string) func() {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatalf("failed to initialize stdouttrace exporter: %v", err)
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return func() { _ = provider.Shutdown(context.Background()) }
}

// SetupPrometheusMetrics initializes the Prometheus metrics exporter and
// wires it as the global meter provider. The /metrics route is served by
// the main router.
func SetupPrometheusMetrics() *sdkmetric.MeterProvider {
	exp, err := prometheus.New()
	if err != nil {
		log.Fatalf("failed to initialize prometheus exporter: %v", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)
	return mp
}

// Metrics are the counters the conversation and knowledge base paths
// report into.
type Metrics struct {
	TurnsTotal     metric.Int64Counter
	StreamChunks   metric.Int64Counter
	UploadsTotal   metric.Int64Counter
	IndexingFailed metric.Int64Counter
	UpstreamErrors metric.Int64Counter
}

// NewMetrics registers the application counters on the global meter
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("assistant-hub")

	turns, err := meter.Int64Counter("conversation_turns_total")
	if err != nil {
		return nil, err
	}
	chunks, err := meter.Int64Counter("stream_chunks_total")
	if err != nil {
		return nil, err
	}
	uploads, err := meter.Int64Counter("document_uploads_total")
	if err != nil {
		return nil, err
	}
	indexingFailed, err := meter.Int64Counter("document_indexing_failures_total")
	if err != nil {
		return nil, err
	}
	upstreamErrors, err := meter.Int64Counter("upstream_errors_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		TurnsTotal:     turns,
		StreamChunks:   chunks,
		UploadsTotal:   uploads,
		IndexingFailed: indexingFailed,
		UpstreamErrors: upstreamErrors,
	}, nil
}
