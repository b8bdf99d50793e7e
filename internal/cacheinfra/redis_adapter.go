package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings for the redis cache adapter.
type RedisConfig struct {
	// Addrs lists redis endpoints. More than one address selects a cluster client.
	Addrs    []string
	Username string
	Password string
	DB       int

	// KeyPrefix namespaces every key written by the adapter.
	KeyPrefix string

	// TTL applies to every entry. Zero keeps entries until they are deleted.
	TTL time.Duration

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns settings for a local redis instance.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addrs:        []string{"localhost:6379"},
		KeyPrefix:    "entity:",
		TTL:          10 * time.Minute,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Validate checks if the configuration values are valid.
func (c RedisConfig) Validate() error {
	if len(c.Addrs) == 0 {
		return &ConfigError{Field: "Addrs", Message: "at least one address is required"}
	}
	for _, addr := range c.Addrs {
		if addr == "" {
			return &ConfigError{Field: "Addrs", Message: "addresses cannot be empty"}
		}
	}
	if c.DB < 0 {
		return &ConfigError{Field: "DB", Message: "must be non-negative"}
	}
	if c.TTL < 0 {
		return &ConfigError{Field: "TTL", Message: "must be non-negative"}
	}
	if c.PoolSize < 0 {
		return &ConfigError{Field: "PoolSize", Message: "must be non-negative"}
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return &ConfigError{Field: "Timeouts", Message: "must be non-negative"}
	}
	return nil
}

// RedisAdapter stores serialized entity snapshots in redis.
type RedisAdapter struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisAdapter validates cfg and creates a redis client. No connection
// is made until the first command; use Ping to fail fast.
func NewRedisAdapter(cfg RedisConfig) (*RedisAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return NewRedisAdapterWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisAdapterWithClient wraps an existing client.
func NewRedisAdapterWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisAdapter) key(k string) string {
	return r.prefix + k
}

func (r *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (r *RedisAdapter) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// DeleteByPrefix walks the keyspace with SCAN and deletes matching keys in batches.
func (r *RedisAdapter) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, matchPrefix(r.key(prefix)), 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del prefix %s: %w", prefix, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan prefix %s: %w", prefix, err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del prefix %s: %w", prefix, err)
		}
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// matchPrefix builds a SCAN MATCH pattern for keys starting with prefix,
// escaping glob metacharacters so they match literally.
func matchPrefix(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}

// Ping checks connectivity.
func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisAdapter) Close() error {
	return r.client.Close()
}
