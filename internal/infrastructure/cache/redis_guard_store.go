package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rowens2025/powervisualize/internal/domain/guard"
)

const (
	defaultGuardKeyPrefix = "pv:guard:"
	maxUpdateRetries      = 8
)

// ErrContention is returned when an optimistic update keeps losing the race
var ErrContention = errors.New("guard state update contention")

// RedisGuardStore implements guard.Store using Redis. Each client key holds a
// JSON-encoded state; updates use WATCH/MULTI so concurrent instances never
// lose a count.
type RedisGuardStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisGuardStore connects to Redis and verifies the connection
func NewRedisGuardStore(cfg RedisConfig) (*RedisGuardStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisGuardStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisGuardStoreWithClient creates a store with an existing Redis client
func NewRedisGuardStoreWithClient(client *redis.Client, keyPrefix string) *RedisGuardStore {
	if keyPrefix == "" {
		keyPrefix = defaultGuardKeyPrefix
	}
	return &RedisGuardStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Update reads, modifies and writes the state of key in a single optimistic
// transaction, retrying when another writer touched the key.
func (s *RedisGuardStore) Update(ctx context.Context, key string, ttl time.Duration, fn func(*guard.State)) (guard.State, error) {
	redisKey := s.keyPrefix + key
	var result guard.State

	txf := func(tx *redis.Tx) error {
		state, _, err := decodeState(tx.Get(ctx, redisKey))
		if err != nil {
			return err
		}
		fn(&state)

		payload, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to encode guard state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, payload, ttl)
			return nil
		})
		if err == nil {
			result = state
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return guard.State{}, fmt.Errorf("failed to update guard state: %w", err)
	}
	return guard.State{}, ErrContention
}

// Get returns the state of key, if present
func (s *RedisGuardStore) Get(ctx context.Context, key string) (guard.State, bool, error) {
	state, ok, err := decodeState(s.client.Get(ctx, s.keyPrefix+key))
	if err != nil {
		return guard.State{}, false, fmt.Errorf("failed to read guard state: %w", err)
	}
	return state, ok, nil
}

// Ping checks the Redis connection
func (s *RedisGuardStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisGuardStore) Close() error {
	return s.client.Close()
}

// decodeState turns a GET result into a state. A missing key is the zero state.
func decodeState(cmd *redis.StringCmd) (guard.State, bool, error) {
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return guard.State{}, false, nil
	}
	if err != nil {
		return guard.State{}, false, err
	}
	var state guard.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return guard.State{}, false, fmt.Errorf("corrupt guard state: %w", err)
	}
	return state, true, nil
}

var _ guard.Store = (*RedisGuardStore)(nil)
