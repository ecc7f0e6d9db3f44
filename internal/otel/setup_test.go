package otel

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name        string
		serviceName string
		version     string
		enabled     bool
	}{
		{"enabled", "notescrub", "1.0.0", true},
		{"dev version", "notescrub", "dev", true},
		{"disabled", "notescrub", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Setup(tt.serviceName, tt.version, tt.enabled, io.Discard)
			require.NoError(t, err)
			require.NotNil(t, shutdown, "shutdown function must not be nil")

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			assert.NoError(t, shutdown(ctx))
		})
	}
}

func TestTracer_CreatesValidSpans(t *testing.T) {
	shutdown, err := Setup("test-service", "0.0.1", true, io.Discard)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = shutdown(ctx)
	}()

	tr := Tracer("github.com/dativo-io/notescrub/internal/otel/test")
	ctx, span := tr.Start(context.Background(), "test.operation")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid(), "span context should be valid after Setup()")

	traceID, spanID := TraceContextFrom(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	assert.Equal(t, span.SpanContext().SpanID().String(), spanID)
}

func TestSetup_ExportsToWriter(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup("notescrub", "1.0.0", true, &buf)
	require.NoError(t, err)

	_, span := Tracer("github.com/dativo-io/notescrub/internal/otel/test").Start(context.Background(), "export.check")
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, shutdown(ctx))
	assert.Contains(t, buf.String(), `"Name": "export.check"`)
}

func TestTracer_ReturnsSpanWithoutSetup(t *testing.T) {
	tr := Tracer("github.com/dativo-io/notescrub/internal/noop")
	_, span := tr.Start(context.Background(), "noop.operation")
	defer span.End()

	assert.Implements(t, (*trace.Span)(nil), span)
}
