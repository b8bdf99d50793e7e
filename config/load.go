package config

import (
	"os"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. Nested keys are joined
// with a double underscore: ENTITYCACHE_CACHE__REDIS__ADDRS.
const EnvPrefix = "ENTITYCACHE_"

// DefaultFiles are looked up in the working directory when no path is given.
var DefaultFiles = []string{"entitycache.yaml", "entitycache.yml"}

// findConfigFile returns explicit when set, else the first default file present.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load builds the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Only flags that were explicitly set override other sources; a flag named
// "storage-dsn" maps to the key storage.dsn.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultValues(Default()), "."), nil); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load defaults")
	}

	if cfgFile := findConfigFile(path); cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "error reading config file "+cfgFile).
				WithMetadata(map[string]any{"path": cfgFile})
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load env vars")
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps ENTITYCACHE_CACHE__MAX_KEY_LENGTH to cache.max_key_length.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// envValue splits comma separated address lists.
func envValue(name, value string) (string, any) {
	key := envKey(name)
	if strings.HasSuffix(key, ".addrs") {
		return key, strings.Split(value, ",")
	}
	return key, value
}

// flagKey maps "cache-max-key-length" to cache.max_key_length: the first
// dash separates the section, the rest become underscores.
func flagKey(name string) string {
	section, rest, ok := strings.Cut(name, "-")
	if !ok {
		return name
	}
	return section + "." + strings.ReplaceAll(rest, "-", "_")
}

func defaultValues(c Config) map[string]any {
	return map[string]any{
		"storage.driver":            c.Storage.Driver,
		"storage.dsn":               c.Storage.DSN,
		"storage.max_open_conns":    c.Storage.MaxOpenConns,
		"storage.max_idle_conns":    c.Storage.MaxIdleConns,
		"storage.conn_max_lifetime": c.Storage.ConnMaxLifetime.String(),
		"storage.query_timeout":     c.Storage.QueryTimeout.String(),

		"cache.driver":              c.Cache.Driver,
		"cache.capacity":            c.Cache.Capacity,
		"cache.num_shards":          c.Cache.NumShards,
		"cache.ttl":                 c.Cache.TTL.String(),
		"cache.eviction_percentage": c.Cache.EvictionPercentage,
		"cache.eviction_interval":   c.Cache.EvictionInterval.String(),
		"cache.max_key_length":      c.Cache.MaxKeyLength,

		"cache.redis.addrs":         c.Cache.Redis.Addrs,
		"cache.redis.db":            c.Cache.Redis.DB,
		"cache.redis.key_prefix":    c.Cache.Redis.KeyPrefix,
		"cache.redis.ttl":           c.Cache.Redis.TTL.String(),
		"cache.redis.pool_size":     c.Cache.Redis.PoolSize,
		"cache.redis.dial_timeout":  c.Cache.Redis.DialTimeout.String(),
		"cache.redis.read_timeout":  c.Cache.Redis.ReadTimeout.String(),
		"cache.redis.write_timeout": c.Cache.Redis.WriteTimeout.String(),

		"log.level":  c.Log.Level,
		"log.format": c.Log.Format,

		"naming.primary_key": c.Naming.PrimaryKey,
		"naming.tables":      c.Naming.Tables,
	}
}
