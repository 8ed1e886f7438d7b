package traces

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestInit_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan_RecordsVerdict(t *testing.T) {
	rec := recorder(t)

	_, span := StartSpan(context.Background(), "analyze", TransactionID("txn_1"))
	span.SetAttributes(Verdict("decline", "critical", 0.5, "blacklist:ip")...)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "analyze", ended[0].Name())

	attrs := map[string]any{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "txn_1", attrs["transaction.id"])
	assert.Equal(t, "decline", attrs["risk.decision"])
	assert.Equal(t, "critical", attrs["risk.level"])
	assert.Equal(t, 0.5, attrs["risk.probability"])
	assert.Equal(t, "blacklist:ip", attrs["risk.override"])
}

func TestVerdict_OmitsEmptyOverride(t *testing.T) {
	assert.Len(t, Verdict("approve", "low", 0.1, ""), 3)
}

func TestFail_SetsErrorStatus(t *testing.T) {
	rec := recorder(t)

	_, span := StartSpan(context.Background(), "analyze")
	Fail(span, errors.New("boom"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}
