package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// ServiceVersion is reported on every exported resource.
var ServiceVersion = "0.1.0"

const shutdownTimeout = 10 * time.Second

// sdkProvider is what the trace, meter and logger SDK providers have in common.
type sdkProvider interface {
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// pipeline owns the SDK provider of one signal. Without a provider the
// signal is disabled and every method is a no-op.
type pipeline struct {
	signal string
	sdk    sdkProvider
	logger *zap.Logger
}

func newPipeline(signal string, logger *zap.Logger) pipeline {
	return pipeline{signal: signal, logger: logger}
}

// IsEnabled reports whether the signal is exported.
func (p *pipeline) IsEnabled() bool {
	return p.sdk != nil
}

// ForceFlush exports everything buffered so far.
func (p *pipeline) ForceFlush(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops the exporter, bounded by shutdownTimeout.
func (p *pipeline) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := p.sdk.Shutdown(ctx); err != nil {
		p.logger.Error("Telemetry shutdown failed", zap.String("signal", p.signal), zap.Error(err))
		return fmt.Errorf("shutdown %s pipeline: %w", p.signal, err)
	}
	p.logger.Info("Telemetry pipeline stopped", zap.String("signal", p.signal))
	return nil
}

func (p *pipeline) started(sdk sdkProvider, endpoint string, fields ...zap.Field) {
	p.sdk = sdk
	p.logger.Info("Exporting telemetry", append([]zap.Field{
		zap.String("signal", p.signal),
		zap.String("collector_endpoint", endpoint),
	}, fields...)...)
}

func (p *pipeline) disabled() {
	p.logger.Info("Telemetry signal disabled", zap.String("signal", p.signal))
}

func newResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}
	return res, nil
}
