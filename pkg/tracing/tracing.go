// Package tracing sets up OpenTelemetry tracing for the service.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	SampleRate     float64
	// Output receives exported spans; stdout when nil.
	Output io.Writer
	// Exporter overrides the stdout exporter, mainly for tests.
	Exporter sdktrace.SpanExporter
}

// Manager owns the tracer provider. A disabled Manager hands out no-op spans.
type Manager struct {
	config   Config
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
}

func NewManager(config Config) *Manager {
	if config.ServiceName == "" {
		config.ServiceName = "ScrapeToAPI"
	}
	if config.SampleRate <= 0 || config.SampleRate > 1 {
		config.SampleRate = 1
	}
	return &Manager{config: config}
}

func (m *Manager) Initialize(ctx context.Context) error {
	if !m.config.Enabled {
		m.tracer = otel.Tracer(m.config.ServiceName)
		return nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(m.config.ServiceName),
		semconv.ServiceVersion(m.config.ServiceVersion),
	))
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter := m.config.Exporter
	if exporter == nil {
		out := m.config.Output
		if out == nil {
			out = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return fmt.Errorf("failed to create exporter: %w", err)
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(m.config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	m.provider = tp
	m.tracer = tp.Tracer(m.config.ServiceName)
	return nil
}

func (m *Manager) Enabled() bool {
	return m.provider != nil
}

// Shutdown flushes pending spans.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.provider != nil {
		return m.provider.Shutdown(ctx)
	}
	return nil
}

func (m *Manager) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	if m == nil || m.tracer == nil {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	return m.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// RecordError marks span as failed.
func RecordError(span oteltrace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
