package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowThreshold = 200 * time.Millisecond

// GormLogger is a gormlogger.Interface on zap. Statements go out at debug,
// slow ones at warn and failed ones at error.
type GormLogger struct {
	zl   *zap.Logger
	mode gormlogger.LogLevel
	slow time.Duration
}

// GormOption configures a GormLogger.
type GormOption func(*GormLogger)

// WithSlowThreshold reports statements slower than d as slow. Zero turns
// slow reporting off.
func WithSlowThreshold(d time.Duration) GormOption {
	return func(l *GormLogger) { l.slow = d }
}

func NewGormLogger(base *zap.Logger, mode gormlogger.LogLevel, opts ...GormOption) *GormLogger {
	l := &GormLogger{zl: base.Named("gorm"), mode: mode, slow: defaultSlowThreshold}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *GormLogger) LogMode(mode gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.mode = mode
	return &c
}

func (l *GormLogger) Info(_ context.Context, msg string, args ...any) {
	l.printf(gormlogger.Info, zapcore.InfoLevel, msg, args)
}

func (l *GormLogger) Warn(_ context.Context, msg string, args ...any) {
	l.printf(gormlogger.Warn, zapcore.WarnLevel, msg, args)
}

func (l *GormLogger) Error(_ context.Context, msg string, args ...any) {
	l.printf(gormlogger.Error, zapcore.ErrorLevel, msg, args)
}

func (l *GormLogger) printf(needs gormlogger.LogLevel, lvl zapcore.Level, msg string, args []any) {
	if l.mode < needs {
		return
	}
	if ce := l.zl.Check(lvl, fmt.Sprintf(msg, args...)); ce != nil {
		ce.Write()
	}
}

// Trace logs one finished statement. Record-not-found is a normal outcome
// for lookups and is logged like a success.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.mode <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)
	slow := l.slow > 0 && elapsed > l.slow

	var (
		lvl   zapcore.Level
		msg   string
		extra zap.Field
	)
	switch {
	case failed && l.mode >= gormlogger.Error:
		lvl, msg, extra = zapcore.ErrorLevel, "SQL Error", zap.Error(err)
	case slow && l.mode >= gormlogger.Warn:
		lvl, msg, extra = zapcore.WarnLevel, "Slow SQL", zap.Duration("threshold", l.slow)
	case l.mode >= gormlogger.Info:
		lvl, msg, extra = zapcore.DebugLevel, "SQL Query", zap.Skip()
	default:
		return
	}

	ce := l.zl.Check(lvl, msg)
	if ce == nil {
		return
	}
	stmt, rows := fc()
	fields := []zap.Field{
		zap.String("sql", stmt),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
		extra,
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	ce.Write(fields...)
}

// MapGormLogLevel maps the database.log_level setting to a gorm level.
// Unknown values mean warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}
