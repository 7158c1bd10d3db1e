// Package tracing installs the OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"

	"github.com/diewo77/go-crm/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Shutdown flushes pending spans.
type Shutdown func(context.Context) error

// Setup registers a global tracer provider. Spans go to the OTLP/HTTP
// endpoint when one is configured and to the log otherwise. With tracing
// disabled it does nothing.
func Setup(ctx context.Context, cfg config.AppConfig, serviceName string, log *zap.Logger) (Shutdown, error) {
	if !cfg.TracingEnabled {
		return func(context.Context) error { return nil }, nil
	}
	var exp sdktrace.SpanExporter = &logExporter{log: log}
	if cfg.OTLPEndpoint != "" {
		otlp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		exp = otlp
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("deployment.environment", cfg.Env),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}

// logExporter writes finished spans at debug level.
type logExporter struct {
	log *zap.Logger
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.log.Debug("span",
			zap.String("name", s.Name()),
			zap.String("trace_id", s.SpanContext().TraceID().String()),
			zap.String("span_id", s.SpanContext().SpanID().String()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("status", s.Status().Code.String()),
		)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }
