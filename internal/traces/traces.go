// Package traces exports scoring spans over OTLP/gRPC.
package traces

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName  = "payguard/risk-api"
	serviceName = "payguard-risk-api"
)

// Shutdown flushes buffered spans and stops the exporter.
type Shutdown func(context.Context) error

// Init installs a batching tracer provider tagged with the model version.
// An empty endpoint leaves the global no-op provider in place.
func Init(ctx context.Context, endpoint, modelVersion string, logger *slog.Logger) (Shutdown, error) {
	if endpoint == "" {
		logger.Info("tracing off", "reason", "OTEL_EXPORTER_OTLP_ENDPOINT is empty")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(modelVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("tracing on", "endpoint", endpoint, "model_version", modelVersion)
	return tp.Shutdown, nil
}

// StartSpan opens a span on the service tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// Fail marks the span as errored.
func Fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// ─── Attributes ───────────────────────────────────────────────────────────────

func TransactionID(id string) attribute.KeyValue {
	return attribute.String("transaction.id", id)
}

func ModelVersion(v string) attribute.KeyValue {
	return attribute.String("model.version", v)
}

func BatchSize(n int) attribute.KeyValue {
	return attribute.Int("batch.size", n)
}

// Verdict describes a scoring outcome. override is omitted when empty.
func Verdict(decision, level string, probability float64, override string) []attribute.KeyValue {
	kv := []attribute.KeyValue{
		attribute.String("risk.decision", decision),
		attribute.String("risk.level", level),
		attribute.Float64("risk.probability", probability),
	}
	if override != "" {
		kv = append(kv, attribute.String("risk.override", override))
	}
	return kv
}
