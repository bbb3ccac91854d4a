// Package telemetry bootstraps an OpenTelemetry tracer provider for the
// sync engine and exposes small span helpers used around session
// lifecycle, command processing, and storage commits.
//
// Grounded on this codebase's internal/telemetry package: the same
// package-level tracer-provider singleton, Init returning a shutdown
// func, and a no-op tracer fallback when disabled — re-targeted at an
// OTLP/HTTP exporter instead of OTLP/gRPC, since this deployment's
// dependency surface (go.opentelemetry.io/otel/exporters/otlp/otlptrace/
// otlptracehttp) avoids pulling in a separate grpc module for a
// single-purpose trace sink.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	tracer     trace.Tracer
	tracerOnce sync.Once

	tracerProvider *sdktrace.TracerProvider

	enabled bool
)

// Init initializes the OpenTelemetry SDK with cfg and installs it as the
// global tracer provider. Returns a shutdown func that flushes and closes
// the exporter; it is safe to defer unconditionally, even when disabled.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		enabled = false
		tracer = noop.NewTracerProvider().Tracer(cfg.ServiceName)
		return func(context.Context) error { return nil }, nil
	}
	enabled = true

	var opts []otlptracehttp.Option
	opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer = tracerProvider.Tracer(cfg.ServiceName)

	shutdown = func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tracerProvider.Shutdown(shutdownCtx)
	}
	return shutdown, nil
}

// Tracer returns the global tracer, falling back to a no-op tracer if
// Init was never called (e.g. in unit tests).
func Tracer() trace.Tracer {
	tracerOnce.Do(func() {
		if tracer == nil {
			tracer = noop.NewTracerProvider().Tracer("syncmld")
		}
	})
	return tracer
}

// IsEnabled reports whether tracing was enabled by the last Init call.
func IsEnabled() bool {
	return enabled
}

// StartSessionSpan starts a span for one SyncML session message exchange,
// tagging it with the session's role and remote device identifier.
func StartSessionSpan(ctx context.Context, sessionID, remoteDevice, role string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "dsync.session",
		trace.WithAttributes(
			attribute.String("dsync.session_id", sessionID),
			attribute.String("dsync.remote_device", remoteDevice),
			attribute.String("dsync.role", role),
		))
}

// StartCommandSpan starts a span for processing one inbound command batch
// against a single sync target.
func StartCommandSpan(ctx context.Context, sourceURI, commandType string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "dsync.command",
		trace.WithAttributes(
			attribute.String("dsync.source_uri", sourceURI),
			attribute.String("dsync.command", commandType),
		))
}

// RecordError records err on the span in ctx and marks it failed. No-op
// when err is nil.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes adds attrs to the span in ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
