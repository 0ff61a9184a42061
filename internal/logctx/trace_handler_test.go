package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func spanContext(t *testing.T) context.Context {
	t.Helper()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	return trace.ContextWithSpanContext(context.Background(), sc)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	return entry
}

func TestTraceHandlerInjectsSpanFields(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))
	logger.InfoContext(spanContext(t), "fetching page", "page", 3)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	assert.Equal(t, "fetching page", entry["msg"])
}

func TestTraceHandlerLeavesUntracedRecordsAlone(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))
	logger.InfoContext(context.Background(), "fetching page")

	entry := decodeLine(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestTraceHandlerSurvivesWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer

	base := NewTraceHandler(slog.NewJSONHandler(&buf, nil))

	derived := base.WithAttrs([]slog.Attr{slog.String("component", "catalog")})
	require.IsType(t, &TraceHandler{}, derived)

	grouped := derived.WithGroup("run")
	require.IsType(t, &TraceHandler{}, grouped)

	slog.New(grouped).InfoContext(spanContext(t), "started", "id", "r1")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "catalog", entry["component"])

	run, ok := entry["run"].(map[string]any)
	require.True(t, ok, "grouped attrs should nest under the group key")
	assert.Equal(t, "r1", run["id"])

	// Record attrs added by Handle land inside the open group too.
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", run["trace_id"])
}

func TestTraceHandlerEnabledDelegates(t *testing.T) {
	h := NewTraceHandler(slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestTraceHandlerRejectsNilInner(t *testing.T) {
	assert.Panics(t, func() { NewTraceHandler(nil) })
}
