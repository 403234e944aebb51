package pricecache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/costbasis/internal/domain"
)

const DefaultRedisPrefix = "costbasis:price:"

// RedisConfig holds connection settings of the shared price cache.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore shares prices between processes. SETNX keeps the first written
// price of a date.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", cfg.Address)
	}

	return NewRedisStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(date domain.Date) string {
	return s.prefix + date.String()
}

func (s *RedisStore) Get(ctx context.Context, date domain.Date) (decimal.Decimal, bool, error) {
	raw, err := s.client.Get(ctx, s.key(date)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, errors.Wrapf(err, "redis get %s", date)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, errors.Wrapf(err, "parse cached price %q for %s", raw, date)
	}

	return price, true, nil
}

func (s *RedisStore) Set(ctx context.Context, date domain.Date, price decimal.Decimal) error {
	if err := s.client.SetNX(ctx, s.key(date), price.String(), 0).Err(); err != nil {
		return errors.Wrapf(err, "redis setnx %s", date)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
