// Package otel wires OpenTelemetry tracing for learnbridge processes.
package otel

import (
	"context"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	envEndpoint    = "LEARNBRIDGE_OTEL_ENDPOINT"
	envEnabled     = "LEARNBRIDGE_OTEL_ENABLED"
	envSampleRatio = "LEARNBRIDGE_OTEL_SAMPLE_RATIO"
)

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when LEARNBRIDGE_OTEL_ENDPOINT is empty or
// LEARNBRIDGE_OTEL_ENABLED is "false", Setup returns a no-op shutdown
// function and the global provider is left untouched. The W3C trace context
// propagator is always installed so outgoing backend requests carry
// traceparent headers whenever a span is active.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if strings.EqualFold(os.Getenv(envEnabled), "false") {
		return noop, nil
	}
	endpoint := strings.TrimSpace(os.Getenv(envEndpoint))
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(os.Getenv(envSampleRatio))),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// sampler parses a ratio in [0,1]; anything else samples every trace.
func sampler(raw string) sdktrace.Sampler {
	ratio, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || ratio < 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
