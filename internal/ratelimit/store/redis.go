package store

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/payportal/authgw/internal/observability"
)

// Prometheus metrics for Redis store operations.
var (
	redisStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgw_redis_store_operations_total",
			Help: "Total number of Redis rate limit store operations",
		},
		[]string{"operation", "status"},
	)
)

// incrementIfBelowScript atomically increments a counter only while it is
// below the limit, setting the expiration when the key is created.
// KEYS[1] = key
// ARGV[1] = limit
// ARGV[2] = expiration in seconds
var incrementIfBelowScript = redis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	if current >= tonumber(ARGV[1]) then
		return {current, 0}
	end
	current = redis.call('INCRBY', KEYS[1], 1)
	if current == 1 then
		redis.call('EXPIRE', KEYS[1], ARGV[2])
	end
	return {current, 1}
`)

// RedisStore implements Store using Redis, for deployments where counters
// must coordinate across gateway instances.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger observability.Logger
}

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logger for the Redis store.
	Logger observability.Logger
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:      "localhost:6379",
		Prefix:       "ratelimit:",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewRedisStore creates a new Redis store and verifies connectivity.
func NewRedisStore(config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.Address, err)
	}

	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		logger: logger,
	}, nil
}

// NewRedisStoreWithClient creates a Redis store around an existing client.
// Used by tests with miniredis.
func NewRedisStoreWithClient(client *redis.Client, prefix string, logger observability.Logger) *RedisStore {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// IncrementIfBelow implements Store using a Lua script so the compare, the
// increment, and the expiry are a single atomic operation on the server.
func (s *RedisStore) IncrementIfBelow(ctx context.Context, key string, limit int64, expiration time.Duration) (int64, bool, error) {
	seconds := int64(expiration / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	reply, err := incrementIfBelowScript.Run(ctx, s.client, []string{s.prefix + key}, limit, seconds).Int64Slice()
	if err != nil {
		redisStoreOperationsTotal.WithLabelValues("increment", "error").Inc()
		return 0, false, fmt.Errorf("failed to increment key %s: %w", key, err)
	}
	if len(reply) != 2 {
		redisStoreOperationsTotal.WithLabelValues("increment", "error").Inc()
		return 0, false, fmt.Errorf("unexpected script reply for key %s", key)
	}

	redisStoreOperationsTotal.WithLabelValues("increment", "ok").Inc()
	return reply[0], reply[1] == 1, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		redisStoreOperationsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	redisStoreOperationsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
