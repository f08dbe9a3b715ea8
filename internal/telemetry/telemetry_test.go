package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(true, &buf, "test")
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry_test").Start(context.Background(), "closure.Resolve")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "closure.Resolve")
	assert.Contains(t, buf.String(), "wikiner")
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(false, nil, "test")
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry_test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}
