// Package telemetry installs the OpenTelemetry tracer provider. Spans are
// written to a local stream since a batch run has no collector to talk to.
package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ppiankov/wikiner/internal/errors"
)

// ShutdownFunc flushes and stops the provider
type ShutdownFunc func(context.Context) error

// Setup installs a global tracer provider exporting to w. When disabled a
// no-op provider is installed.
func Setup(enabled bool, w io.Writer, version string) (ShutdownFunc, error) {
	if !enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, errors.Wrap(err, "create span exporter")
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "wikiner"),
		attribute.String("service.version", version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Wrap(tp.Shutdown(ctx), "shutdown tracer provider")
	}, nil
}
