package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartServiceSpan(context.Background(), "order_sync", "sync_order",
		WithSpanKind(trace.SpanKindClient),
		WithAttribute(SpanAttrOrderID, "o-1"),
		WithAttribute("attempt", 2),
	)
	assert.NotEmpty(t, GetTraceID(ctx))
	SetOK(span)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "order_sync.sync_order", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "o-1", attrs[SpanAttrOrderID].AsString())
	assert.Equal(t, int64(2), attrs["attempt"].AsInt64())
}

func TestRecordError(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartSpan(context.Background(), "op")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestSetAttributesAndEvents(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartSpan(context.Background(), "op")
	SetAttributes(span, "a", "x", 42, "skipped", "b", true, "dangling")
	SetAttribute(span, "tags", []string{"x", "y"})
	AddEvent(span, "stock_clamped", "requested", int64(5))
	span.End()

	s := recorder.Ended()[0]
	attrs := attrMap(s.Attributes())
	assert.Equal(t, "x", attrs["a"].AsString())
	assert.True(t, attrs["b"].AsBool())
	assert.Equal(t, []string{"x", "y"}, attrs["tags"].AsStringSlice())
	assert.NotContains(t, attrs, "dangling")

	require.Len(t, s.Events(), 1)
	assert.Equal(t, "stock_clamped", s.Events()[0].Name)
}

func TestNilSpanHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		SetAttributes(nil, "a", 1)
		SetAttribute(nil, "a", 1)
		RecordError(nil, errors.New("x"))
		SetOK(nil)
		AddEvent(nil, "e")
	})
	assert.Empty(t, GetTraceID(context.Background()))
}

type stringer struct{}

func (stringer) String() string { return "str" }

func TestToAttribute(t *testing.T) {
	assert.Equal(t, attribute.Int64Value(7), toAttribute("k", int64(7)).Value)
	assert.Equal(t, attribute.Float64Value(1.5), toAttribute("k", 1.5).Value)
	assert.Equal(t, "str", toAttribute("k", stringer{}).Value.AsString())
	assert.Equal(t, "[1 2]", toAttribute("k", []int{1, 2}).Value.AsString())
}
