package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetrics reports connection pool state and evidence query latency.
type DBMetrics struct {
	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter
	registration  metric.Registration
	logger        *zap.Logger
}

// NewDBMetrics registers pool gauges observed from stats on every collection.
func NewDBMetrics(meter metric.Meter, stats func() sql.DBStats, logger *zap.Logger) (*DBMetrics, error) {
	in := &instruments{meter: meter}
	m := &DBMetrics{
		queryDuration: in.seconds("db.query.duration", "Evidence store query duration", queryBuckets),
		queryErrors:   in.counter("db.query.errors", "Evidence store queries that failed", "{query}"),
		logger:        logger,
	}
	if in.err != nil {
		return nil, in.err
	}

	connections, err := meter.Int64ObservableGauge("db.pool.connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create pool gauge: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("db.pool.wait_count",
		metric.WithDescription("Total connections waited for"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create pool wait counter: %w", err)
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(connections, int64(s.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
		o.ObserveInt64(connections, int64(s.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(connections, int64(s.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, connections, waits)
	if err != nil {
		return nil, fmt.Errorf("failed to register pool callback: %w", err)
	}
	return m, nil
}

// Instrument hooks query timing into db.
func (m *DBMetrics) Instrument(db *gorm.DB) error {
	return onReads(db, "metrics", m.afterQuery)
}

// Stop unregisters the pool callback.
func (m *DBMetrics) Stop() {
	if m.registration == nil {
		return
	}
	if err := m.registration.Unregister(); err != nil {
		m.logger.Warn("Failed to unregister pool metrics", zap.Error(err))
	}
}

func (m *DBMetrics) afterQuery(ctx context.Context, tx *gorm.DB, elapsed time.Duration) {
	op := AttrDBOperation.String(statementVerb(tx.Statement.SQL.String()))
	observe(ctx, m.queryDuration, elapsed, op)
	if tx.Error != nil {
		inc(ctx, m.queryErrors, op)
	}
}

func statementVerb(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return "unknown"
	}
	switch verb := strings.ToLower(fields[0]); verb {
	case "select", "with", "insert", "update", "delete":
		return verb
	default:
		return "other"
	}
}
