package observability

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup installs a global tracer provider exporting spans over OTLP/HTTP to endpoint.
// endpoint may be a host:port or a full http(s) URL. Callers must Shutdown the
// returned provider to flush pending spans.
func Setup(ctx context.Context, endpoint, serviceName string) (*sdktrace.TracerProvider, error) {
	opts, err := exporterOptions(endpoint)
	if err != nil {
		return nil, err
	}

	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)
	otel.SetTracerProvider(tp)

	return tp, nil
}

func exporterOptions(endpoint string) ([]otlptracehttp.Option, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("telemetry endpoint cannot be empty")
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		// plain host:port
		return []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(u.Host)}
	if u.Scheme == "http" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if u.Path != "" && u.Path != "/" {
		opts = append(opts, otlptracehttp.WithURLPath(u.Path))
	}

	return opts, nil
}
