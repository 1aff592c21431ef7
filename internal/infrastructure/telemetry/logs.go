package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds logs bridge configuration.
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// LoggerProvider batches log records to the collector.
type LoggerProvider struct {
	pipeline
	records *sdklog.LoggerProvider
}

// NewLoggerProvider installs a batching OTLP logger provider globally.
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{pipeline: newPipeline("logs", logger)}
	if !cfg.Enabled {
		lp.disabled()
		return lp, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create logs exporter: %w", err)
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	lp.records = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp.records)
	lp.started(lp.records, cfg.CollectorEndpoint)
	return lp, nil
}

// ZapBridgeConfig selects the provider and minimum level of the zap bridge.
type ZapBridgeConfig struct {
	ServiceName    string
	LoggerProvider *LoggerProvider
	Level          zapcore.Level
}

// NewZapOTELCore returns a core that forwards zap entries at cfg.Level and
// above to the OTLP log pipeline, to be teed with the console core.
// Without an enabled provider it drops everything.
func NewZapOTELCore(cfg ZapBridgeConfig) zapcore.Core {
	lp := cfg.LoggerProvider
	if lp == nil || lp.records == nil {
		return zapcore.NewNopCore()
	}
	bridge := otelzap.NewCore(cfg.ServiceName, otelzap.WithLoggerProvider(lp.records))
	core, err := zapcore.NewIncreaseLevelCore(bridge, cfg.Level)
	if err != nil {
		// the bridge already filters above cfg.Level
		return bridge
	}
	return core
}
