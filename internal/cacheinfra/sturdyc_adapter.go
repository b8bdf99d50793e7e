package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// Config sizes the in-process snapshot cache. Every entry is one encoded
// entity keyed "<Type>_<id>", so Capacity is a bound on cached entities
// across all types.
type Config struct {
	// Capacity is the number of entity snapshots kept before eviction.
	Capacity int
	// NumShards splits the key space so hydrations of different entities
	// rarely contend on the same lock.
	NumShards int
	// TTL bounds how long a snapshot may be served after its row changed
	// outside this process.
	TTL time.Duration
	// EvictionPercentage is the share of snapshots dropped when Capacity
	// is reached, 1 to 100.
	EvictionPercentage int
	// EvictionInterval overrides how often expired snapshots are swept.
	EvictionInterval time.Duration
}

// DefaultConfig holds ten thousand snapshots for five minutes.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// sturdycOptions returns the optional sturdyc settings. The sizing fields
// are positional arguments of sturdyc.New.
func (c Config) sturdycOptions() []sturdyc.Option {
	if c.EvictionInterval > 0 {
		return []sturdyc.Option{sturdyc.WithEvictionInterval(c.EvictionInterval)}
	}
	return nil
}

// Validate reports the first field sturdyc would reject.
func (c Config) Validate() error {
	checks := []struct {
		bad     bool
		field   string
		message string
	}{
		{c.Capacity <= 0, "Capacity", "must be greater than 0"},
		{c.NumShards <= 0, "NumShards", "must be greater than 0"},
		{c.TTL <= 0, "TTL", "must be greater than 0"},
		{c.EvictionPercentage < 1 || c.EvictionPercentage > 100, "EvictionPercentage", "must be between 1 and 100"},
		{c.EvictionInterval < 0, "EvictionInterval", "must be non-negative"},
	}
	for _, check := range checks {
		if check.bad {
			return &ConfigError{Field: check.field, Message: check.message}
		}
	}
	return nil
}

// SturdycAdapter keeps serialized entity snapshots in an in-process
// sturdyc client.
type SturdycAdapter struct {
	client *sturdyc.Client[[]byte]
}

// NewSturdycAdapter validates cfg and initializes a sturdyc client with it.
func NewSturdycAdapter(cfg Config) (*SturdycAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.sturdycOptions()...,
	)

	return &SturdycAdapter{client: client}, nil
}

// Get returns a copy of the stored payload so callers cannot mutate the entry.
func (s *SturdycAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.client.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), v...), nil
}

func (s *SturdycAdapter) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.client.Set(key, append([]byte(nil), value...))
	return nil
}

// Delete removes a single entry. Deleting a missing key is not an error.
func (s *SturdycAdapter) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix removes all entries with keys starting with prefix.
func (s *SturdycAdapter) DeleteByPrefix(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// Size reports the number of stored entries.
func (s *SturdycAdapter) Size() int {
	return s.client.Size()
}

// NoopAdapter caches nothing: every Get misses and writes are dropped.
type NoopAdapter struct{}

// Get always misses.
func (NoopAdapter) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

// Set drops the payload.
func (NoopAdapter) Set(context.Context, string, []byte) error { return nil }

// Delete has nothing to remove.
func (NoopAdapter) Delete(context.Context, string) error { return nil }
