package cache

import (
	"time"

	"github.com/goliatone/go-entity-cache/internal/cacheinfra"
)

// Supported cache drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverNoop   = "noop"
)

// DefaultMaxKeyLength matches the memcached key limit.
const DefaultMaxKeyLength = 250

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	// Driver selects the backend: memory (sturdyc), redis or noop.
	Driver string `koanf:"driver"`

	Capacity           int           `koanf:"capacity"`
	NumShards          int           `koanf:"num_shards"`
	TTL                time.Duration `koanf:"ttl"`
	EvictionPercentage int           `koanf:"eviction_percentage"`
	EvictionInterval   time.Duration `koanf:"eviction_interval"`

	// MaxKeyLength bounds generated keys. Longer keys are hashed.
	MaxKeyLength int `koanf:"max_key_length"`

	Redis RedisConfig `koanf:"redis"`
}

// RedisConfig mirrors the redis adapter settings.
type RedisConfig struct {
	Addrs        []string      `koanf:"addrs"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	KeyPrefix    string        `koanf:"key_prefix"`
	TTL          time.Duration `koanf:"ttl"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	cfg := convertFromInternal(cacheinfra.DefaultConfig())
	cfg.Driver = DriverMemory
	cfg.MaxKeyLength = DefaultMaxKeyLength
	cfg.Redis = convertRedisFromInternal(cacheinfra.DefaultRedisConfig())
	return cfg
}

// Validate checks whether the configuration values are valid for the selected driver.
func (c Config) Validate() error {
	if c.MaxKeyLength < 0 {
		return &cacheinfra.ConfigError{Field: "MaxKeyLength", Message: "must be non-negative"}
	}
	switch c.Driver {
	case DriverMemory, "":
		return c.toInternal().Validate()
	case DriverRedis:
		return c.Redis.toInternal().Validate()
	case DriverNoop:
		return nil
	}
	return &cacheinfra.ConfigError{Field: "Driver", Message: "unsupported driver " + c.Driver}
}

// Open constructs the adapter selected by cfg.Driver. An empty driver
// selects the in-process memory adapter.
func Open(cfg Config) (Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverRedis:
		return NewRedisAdapter(cfg.Redis)
	case DriverNoop:
		return NewNoopAdapter(), nil
	}
	return NewMemoryAdapter(cfg)
}

// NewMemoryAdapter constructs the in-process sturdyc adapter.
func NewMemoryAdapter(cfg Config) (Adapter, error) {
	adapter, err := cacheinfra.NewSturdycAdapter(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

// NewRedisAdapter constructs the redis adapter.
func NewRedisAdapter(cfg RedisConfig) (Adapter, error) {
	adapter, err := cacheinfra.NewRedisAdapter(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

// NewNoopAdapter returns an adapter that never stores anything.
func NewNoopAdapter() Adapter {
	return cacheinfra.NoopAdapter{}
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}

func (c RedisConfig) toInternal() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Addrs:        c.Addrs,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		KeyPrefix:    c.KeyPrefix,
		TTL:          c.TTL,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

func convertRedisFromInternal(cfg cacheinfra.RedisConfig) RedisConfig {
	return RedisConfig{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		KeyPrefix:    cfg.KeyPrefix,
		TTL:          cfg.TTL,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
