package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rowens2025/powervisualize/internal/domain/guard"
	"github.com/rowens2025/powervisualize/internal/infrastructure/config"
)

// Guard store kinds
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// GuardStoreFactory creates guard stores based on configuration
type GuardStoreFactory struct {
	redisConfig           config.RedisConfig
	guardConfig           config.GuardConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// GuardStoreFactoryOption is a functional option for configuring the factory
type GuardStoreFactoryOption func(*GuardStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) GuardStoreFactoryOption {
	return func(f *GuardStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) GuardStoreFactoryOption {
	return func(f *GuardStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewGuardStoreFactory creates a new factory
func NewGuardStoreFactory(redisCfg config.RedisConfig, guardCfg config.GuardConfig, opts ...GuardStoreFactoryOption) *GuardStoreFactory {
	f := &GuardStoreFactory{
		redisConfig:           redisCfg,
		guardConfig:           guardCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisStore creates a Redis-based guard store
func (f *GuardStoreFactory) CreateRedisStore() (*RedisGuardStore, error) {
	store, err := NewRedisGuardStore(RedisConfig{
		Host:      f.redisConfig.Host,
		Port:      f.redisConfig.Port,
		Password:  f.redisConfig.Password,
		DB:        f.redisConfig.DB,
		KeyPrefix: f.guardConfig.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis guard store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore creates an in-memory guard store. Limits are enforced
// per process, so N instances admit up to N times the configured limit.
func (f *GuardStoreFactory) CreateInMemoryStore() *InMemoryGuardStore {
	return NewInMemoryGuardStore()
}

// CreateStore creates the configured guard store. A redis store that cannot
// connect falls back to in-memory when fallback is allowed.
func (f *GuardStoreFactory) CreateStore() (guard.Store, error) {
	if f.guardConfig.Store != StoreRedis {
		f.logger.Info("using in-memory guard store")
		return f.CreateInMemoryStore(), nil
	}

	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis guard store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for guard store but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory guard store. "+
		"Rate limits will not be shared across instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
