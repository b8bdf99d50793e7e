// Package config loads the entity cache configuration: storage and cache
// adapters, logging, naming convention and entity schemas.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/relation"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/storage"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds every setting needed to build an entity store.
type Config struct {
	Storage  storage.Config  `koanf:"storage"`
	Cache    cache.Config    `koanf:"cache"`
	Log      LogConfig       `koanf:"log"`
	Naming   NamingConfig    `koanf:"naming"`
	Entities []schema.Schema `koanf:"entities"`
}

// LogConfig selects the slog handler and level.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// NamingConfig overrides parts of the relation naming convention.
type NamingConfig struct {
	PrimaryKey string `koanf:"primary_key"`
	Tables     string `koanf:"tables"`
}

// Default returns the configuration used when nothing else is set: an
// in-memory store behind the sturdyc cache, text logs at info level.
func Default() Config {
	naming := relation.DefaultNaming()
	return Config{
		Storage: storage.DefaultConfig(),
		Cache:   cache.DefaultConfig(),
		Log:     LogConfig{Level: "info", Format: "text"},
		Naming:  NamingConfig{PrimaryKey: naming.PrimaryKey, Tables: string(naming.Tables)},
	}
}

// Validate checks every section and reports the failing ones as
// validation field errors.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Storage),
		validation.Field(&c.Cache),
		validation.Field(&c.Log),
		validation.Field(&c.Naming),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}
	return nil
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("text", "json")),
	)
}

func (n NamingConfig) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Tables, validation.In(string(relation.TablesAsTypes), string(relation.TablesPluralSnake))),
	)
}

// RelationNaming returns the naming convention described by the config.
func (c Config) RelationNaming() relation.Naming {
	naming := relation.DefaultNaming()
	if c.Naming.PrimaryKey != "" {
		naming.PrimaryKey = c.Naming.PrimaryKey
	}
	if c.Naming.Tables != "" {
		naming.Tables = relation.TableStrategy(c.Naming.Tables)
	}
	return naming
}

// Registry compiles the configured entity schemas. Every relation target
// must itself be declared.
func (c Config) Registry() (*schema.Registry, error) {
	registry := schema.NewRegistry(c.RelationNaming())
	for i := range c.Entities {
		s := c.Entities[i]
		s.Fields = slices.Clone(s.Fields)
		if err := registry.Register(&s); err != nil {
			return nil, err
		}
	}
	if err := registry.CheckRelations(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid entity relations")
	}
	return registry, nil
}

// Logger builds the slog logger described by the config, writing to stderr.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c Config) String() string {
	return fmt.Sprintf("storage=%s cache=%s entities=%d", c.Storage.Driver, c.Cache.Driver, len(c.Entities))
}
