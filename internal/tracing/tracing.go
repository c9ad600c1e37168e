// Package tracing configures a process-wide OpenTelemetry tracer provider,
// used by the HTTP router's otelgin middleware, mirroring the teacher
// backend's use of go.opentelemetry.io/otel + otelgin. The coordinator's
// request dispatch creates no spans.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/upperlevel/carcassonne-server"

// Init installs a trace provider with an in-process sampler. No external
// collector is required: spans are created and sampled but not exported
// anywhere by default, which keeps `go run ./cmd/coordinatord` usable
// without extra infrastructure while leaving the instrumentation in place
// for an operator who wires up an exporter later.
func Init(serviceName string) (func(context.Context) error, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// Tracer returns the coordinator's named tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
