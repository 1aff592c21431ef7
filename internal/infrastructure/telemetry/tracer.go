// Package telemetry provides OpenTelemetry integration for tracing, metrics,
// logs and continuous profiling of the assistant service.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds tracing configuration.
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
}

// TracerProvider exports spans over OTLP/gRPC and can tag CPU profiles with
// span ids once the profiler runs.
type TracerProvider struct {
	pipeline
	traces       *sdktrace.TracerProvider
	spanProfiles atomic.Bool
}

// NewTracerProvider installs a batching OTLP tracer provider and the W3C
// propagators globally. When disabled the global no-op provider stays.
func NewTracerProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*TracerProvider, error) {
	tp := &TracerProvider{pipeline: newPipeline("traces", logger)}
	if !cfg.Enabled {
		tp.disabled()
		return tp, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	tp.traces = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SamplingRatio)),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp.traces)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tp.started(tp.traces, cfg.CollectorEndpoint, zap.Float64("sampling_ratio", cfg.SamplingRatio))
	return tp, nil
}

// Sampler maps a ratio to a parent-based sampler. Ratios at or below zero
// never sample, ratios at or above one always do.
func Sampler(ratio float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case ratio >= 1:
		root = sdktrace.AlwaysSample()
	case ratio <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(root)
}

// EnableSpanProfiles wraps the global tracer provider so CPU profiles carry
// the span id of the work being sampled. Start the profiler first. It does
// nothing when tracing is disabled or the wrapper is already installed.
func (tp *TracerProvider) EnableSpanProfiles() error {
	if tp.traces == nil || !tp.spanProfiles.CompareAndSwap(false, true) {
		return nil
	}
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp.traces))
	tp.logger.Info("Span profiles enabled")
	return nil
}

// SpanProfilesEnabled reports whether EnableSpanProfiles installed the wrapper.
func (tp *TracerProvider) SpanProfilesEnabled() bool {
	return tp.spanProfiles.Load()
}

// Tracer returns a tracer from this provider, or from the global one when
// tracing is disabled.
func (tp *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if tp.traces == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return tp.traces.Tracer(name, opts...)
}
