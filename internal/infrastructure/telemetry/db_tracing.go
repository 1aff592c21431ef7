package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls query spans on the evidence store.
type DBTracingConfig struct {
	// LogFullSQL keeps bound variables in span statements. Off by default:
	// visitor questions reach the trigram queries as parameters.
	LogFullSQL bool
	// SlowQuery flags spans of statements that take longer.
	SlowQuery time.Duration
}

const defaultSlowQuery = 200 * time.Millisecond

// TraceDatabase registers otelgorm on db, then a hook that flags slow
// statements and marks failures other than record-not-found on their spans.
func TraceDatabase(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if cfg.SlowQuery <= 0 {
		cfg.SlowQuery = defaultSlowQuery
	}
	var opts []otelgorm.Option
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := onReads(db, "span_slow", func(ctx context.Context, tx *gorm.DB, elapsed time.Duration) {
		annotateQuerySpan(trace.SpanFromContext(ctx), tx, elapsed, cfg.SlowQuery)
	}); err != nil {
		return err
	}
	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query", cfg.SlowQuery),
	)
	return nil
}

func annotateQuerySpan(span trace.Span, tx *gorm.DB, elapsed, slow time.Duration) {
	if !span.IsRecording() {
		return
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}
	if elapsed > slow {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("threshold_ms", slow.Milliseconds()),
		))
	}
}
