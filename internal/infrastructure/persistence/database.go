package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
)

const defaultConnectTimeout = 5 * time.Second

// Database is the pooled evidence store connection.
type Database struct {
	DB  *gorm.DB
	sql *sql.DB
}

// Option adjusts the gorm configuration before the connection opens.
type Option func(*gorm.Config)

// WithLogger installs a gorm logger, typically logger.NewGormLogger.
func WithLogger(l gormlogger.Interface) Option {
	return func(c *gorm.Config) { c.Logger = l }
}

// Lazy opens without checking connectivity. The pool dials on first use,
// so the service can start while the store is still down.
func Lazy() Option {
	return func(c *gorm.Config) { c.DisableAutomaticPing = true }
}

// NewDatabase connects to the Postgres evidence store described by cfg.
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	return Open(postgres.Open(cfg.DSN()), cfg, opts...)
}

// Open connects through dialector, sizes the pool from cfg and, unless
// Lazy was given, pings within cfg.ConnectTimeout.
func Open(dialector gorm.Dialector, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	gcfg := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	}
	for _, opt := range opts {
		opt(gcfg)
	}

	gdb, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("open evidence store: %w", err)
	}
	pool, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("evidence store pool: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	d := &Database{DB: gdb, sql: pool}
	if gcfg.DisableAutomaticPing {
		return d, nil
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := d.Ping(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping evidence store: %w", err)
	}
	return d, nil
}

// Ping checks that the store answers.
func (d *Database) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// Stats reports the connection pool counters.
func (d *Database) Stats() sql.DBStats {
	return d.sql.Stats()
}

// Close closes every pooled connection.
func (d *Database) Close() error {
	return d.sql.Close()
}
