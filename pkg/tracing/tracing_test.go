package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestManager_Disabled(t *testing.T) {
	m := NewManager(Config{})
	require.NoError(t, m.Initialize(context.Background()))
	assert.False(t, m.Enabled())

	ctx, span := m.StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	m := NewManager(Config{Enabled: true, ServiceName: "test", Exporter: exporter})
	require.NoError(t, m.Initialize(context.Background()))
	assert.True(t, m.Enabled())

	_, span := m.StartSpan(context.Background(), "scrape", attribute.String("url", "https://example.com"))
	RecordError(span, errors.New("fetch failed"))
	span.End()

	require.NoError(t, m.Shutdown(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "scrape", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("url", "https://example.com"))
}

func TestManager_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(Config{Enabled: true, Output: &buf})
	require.NoError(t, m.Initialize(context.Background()))

	_, span := m.StartSpan(context.Background(), "written")
	span.End()
	require.NoError(t, m.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"written"`)
}

func TestStartSpan_NilManager(t *testing.T) {
	var m *Manager
	ctx, span := m.StartSpan(context.Background(), "nil")
	assert.NotNil(t, ctx)
	span.End()
}
