package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/payportal/authgw/internal/observability"
)

// Redis key layout:
//
//	principal:<id>        hash of principal fields
//	idx:email:<email>     unique index, value is the principal id
//	idx:idnumber:<n>      unique index
//	idx:account:<n>       unique index
const (
	principalKeyPrefix = "principal:"
	emailIdxPrefix     = "idx:email:"
	idNumberIdxPrefix  = "idx:idnumber:"
	accountIdxPrefix   = "idx:account:"
)

// insertPrincipalScript reserves all three unique indexes and writes the
// record in one atomic step, so concurrent duplicate inserts see
// at-most-one-success.
// KEYS[1..3] = index keys (email, id number, account number)
// KEYS[4]    = principal hash key
// ARGV       = id, name, idNumber, accountNumber, email, passwordHash, createdAt
var insertPrincipalScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) + redis.call('EXISTS', KEYS[2]) + redis.call('EXISTS', KEYS[3]) > 0 then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1])
	redis.call('SET', KEYS[2], ARGV[1])
	redis.call('SET', KEYS[3], ARGV[1])
	redis.call('HSET', KEYS[4],
		'id', ARGV[1],
		'name', ARGV[2],
		'idNumber', ARGV[3],
		'accountNumber', ARGV[4],
		'email', ARGV[5],
		'passwordHash', ARGV[6],
		'createdAt', ARGV[7])
	return 1
`)

// RedisStore implements Store using Redis, for deployments where principal
// records are shared across gateway instances.
type RedisStore struct {
	client *redis.Client
	logger observability.Logger
}

// RedisConfig holds configuration for the Redis credential store.
type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	DialTimeout time.Duration

	// Logger for the store.
	Logger observability.Logger
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:     "localhost:6379",
		DialTimeout: 5 * time.Second,
	}
}

// NewRedisStore creates a new Redis credential store and verifies
// connectivity.
func NewRedisStore(config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:        config.Address,
		Password:    config.Password,
		DB:          config.DB,
		DialTimeout: config.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.Address, err)
	}

	return NewRedisStoreWithClient(client, config.Logger), nil
}

// NewRedisStoreWithClient creates a Redis credential store around an
// existing client. Used by tests with miniredis.
func NewRedisStoreWithClient(client *redis.Client, logger observability.Logger) *RedisStore {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &RedisStore{
		client: client,
		logger: logger,
	}
}

// Insert implements Store.
func (s *RedisStore) Insert(ctx context.Context, p *Principal) error {
	email := NormalizeEmail(p.Email)

	keys := []string{
		emailIdxPrefix + email,
		idNumberIdxPrefix + p.IDNumber,
		accountIdxPrefix + p.AccountNumber,
		principalKeyPrefix + p.ID,
	}

	inserted, err := insertPrincipalScript.Run(ctx, s.client, keys,
		p.ID, p.Name, p.IDNumber, p.AccountNumber, email,
		p.PasswordHash, p.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to insert principal: %w", err)
	}

	if inserted == 0 {
		return ErrDuplicateKey
	}

	return nil
}

// FindByEmail implements Store.
func (s *RedisStore) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	id, err := s.client.Get(ctx, emailIdxPrefix+NormalizeEmail(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up email index: %w", err)
	}

	return s.FindByID(ctx, id)
}

// FindByID implements Store.
func (s *RedisStore) FindByID(ctx context.Context, id string) (*Principal, error) {
	fields, err := s.client.HGetAll(ctx, principalKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load principal %s: %w", id, err)
	}

	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["createdAt"])
	if err != nil {
		// A record the gateway wrote always carries a parseable timestamp,
		// so a bad one means the record was corrupted or tampered with.
		s.logger.Error("principal record has unparseable createdAt",
			observability.String("principal_id", id),
			observability.Error(err),
		)
		return nil, fmt.Errorf("corrupt principal record %s: %w", id, err)
	}

	return &Principal{
		ID:            fields["id"],
		Name:          fields["name"],
		IDNumber:      fields["idNumber"],
		AccountNumber: fields["accountNumber"],
		Email:         fields["email"],
		PasswordHash:  fields["passwordHash"],
		CreatedAt:     createdAt,
	}, nil
}

// ExistsAny implements Store.
func (s *RedisStore) ExistsAny(ctx context.Context, email, idNumber, accountNumber string) (bool, error) {
	count, err := s.client.Exists(ctx,
		emailIdxPrefix+NormalizeEmail(email),
		idNumberIdxPrefix+idNumber,
		accountIdxPrefix+accountNumber,
	).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check unique keys: %w", err)
	}

	return count > 0, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
