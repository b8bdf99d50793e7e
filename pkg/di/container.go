package di

import (
	"errors"
	"io"
	"log/slog"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/config"
	"github.com/goliatone/go-entity-cache/entitystore"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/storage"
)

// Container wires the configured storage adapter, cache adapter, schema
// registry and logger into a single entity store. It owns the adapters
// and releases them on Close.
type Container struct {
	config   config.Config
	logger   *slog.Logger
	registry *schema.Registry
	storage  storage.Adapter
	cache    cache.Adapter
	keys     cache.KeyBuilder
	store    *entitystore.Store
}

// NewContainer builds every component described by cfg. Options are
// applied after the container's own logger and key builder, so callers
// can override either.
func NewContainer(cfg config.Config, opts ...entitystore.Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, err
	}

	cacheAdapter, err := cache.Open(cfg.Cache)
	if err != nil {
		closeStorage(store)
		return nil, err
	}

	c := &Container{
		config:   cfg,
		logger:   cfg.Logger(),
		registry: registry,
		storage:  store,
		cache:    cacheAdapter,
		keys:     cache.NewKeyBuilder(cfg.Cache.MaxKeyLength),
	}

	storeOpts := append([]entitystore.Option{
		entitystore.WithLogger(c.logger),
		entitystore.WithKeyBuilder(c.keys),
	}, opts...)

	c.store, err = entitystore.New(registry, store, cacheAdapter, storeOpts...)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// NewContainerWithDefaults creates a container over in-memory storage and
// the sturdyc cache. Entity types must be registered on Registry before use.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(config.Default())
}

// Store returns the entity store.
func (c *Container) Store() *entitystore.Store {
	return c.store
}

// Registry returns the compiled schema registry.
func (c *Container) Registry() *schema.Registry {
	return c.registry
}

// Storage returns the storage adapter.
func (c *Container) Storage() storage.Adapter {
	return c.storage
}

// Cache returns the cache adapter.
func (c *Container) Cache() cache.Adapter {
	return c.cache
}

// KeyBuilder returns the cache key builder shared with the store.
func (c *Container) KeyBuilder() cache.KeyBuilder {
	return c.keys
}

// Logger returns the logger built from the log section.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() config.Config {
	return c.config
}

// Close releases storage connections and cache clients.
func (c *Container) Close() error {
	var errs []error
	if closer, ok := c.storage.(storage.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if closer, ok := c.cache.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

func closeStorage(s storage.Adapter) {
	if closer, ok := s.(storage.Closer); ok {
		_ = closer.Close()
	}
}
