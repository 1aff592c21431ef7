package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const defaultExportInterval = time.Minute

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration
	ServiceName       string
	Insecure          bool
}

// MeterProvider pushes metrics to the collector on a fixed interval.
type MeterProvider struct {
	pipeline
	meters *sdkmetric.MeterProvider
}

// NewMeterProvider installs a periodic OTLP meter provider globally.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{pipeline: newPipeline("metrics", logger)}
	if !cfg.Enabled {
		mp.disabled()
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metrics exporter: %w", err)
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	mp.meters = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.meters)
	mp.started(mp.meters, cfg.CollectorEndpoint, zap.Duration("export_interval", interval))
	return mp, nil
}

// Meter returns a meter from this provider, or from the global one when
// metrics are disabled.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.meters == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.meters.Meter(name, opts...)
}

// instruments creates instruments on one meter and keeps the first error,
// so a constructor checks once at the end.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) counter(name, description, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	in.keep(name, err)
	return c
}

// seconds creates a duration histogram with explicit bucket bounds.
func (in *instruments) seconds(name, description string, bounds []float64) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(description),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	in.keep(name, err)
	return h
}

func (in *instruments) keep(name string, err error) {
	if err != nil && in.err == nil {
		in.err = fmt.Errorf("create instrument %s: %w", name, err)
	}
}

func inc(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func observe(ctx context.Context, h metric.Float64Histogram, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// Attribute keys for metrics and spans.
var (
	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")

	AttrDBOperation = attribute.Key("db.operation")
	AttrDBState     = attribute.Key("db.pool.state")

	AttrIntent      = attribute.Key("assistant.intent")
	AttrOutcome     = attribute.Key("assistant.outcome")
	AttrResolution  = attribute.Key("retrieval.resolution")
	AttrDegraded    = attribute.Key("retrieval.degraded")
	AttrGuardResult = attribute.Key("guard.decision")
	AttrModeration  = attribute.Key("moderation.reason")
	AttrProvider    = attribute.Key("generator.provider")

	// span only
	AttrSkill        = attribute.Key("retrieval.skill")
	AttrStage        = attribute.Key("retrieval.stage")
	AttrProjectCount = attribute.Key("retrieval.project_count")
	AttrModel        = attribute.Key("generator.model")
)

// Histogram bucket bounds in seconds. Generator calls run up to the 15s
// default timeout, so their buckets reach past it.
var (
	httpBuckets      = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20}
	queryBuckets     = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	generatorBuckets = []float64{0.25, 0.5, 1, 2, 4, 8, 12, 16, 30}
)
