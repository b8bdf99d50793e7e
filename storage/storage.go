package storage

import (
	"context"
	"time"

	"github.com/goliatone/go-entity-cache/internal/storageinfra"
)

// Row is a single record keyed by column name.
type Row = storageinfra.Row

// Filter is a conjunction of column equality predicates. A nil value
// matches NULL columns.
type Filter = storageinfra.Filter

var (
	ErrNotFound    = storageinfra.ErrNotFound
	ErrAmbiguous   = storageinfra.ErrAmbiguous
	ErrEmptyFilter = storageinfra.ErrEmptyFilter
)

// Supported drivers.
const (
	DriverMemory   = storageinfra.DriverMemory
	DriverSQLite   = storageinfra.DriverSQLite
	DriverPostgres = storageinfra.DriverPostgres
	DriverMySQL    = storageinfra.DriverMySQL
)

// Adapter is the row-level contract the entity store persists through.
// Tables and columns are plain names derived from entity schemas.
type Adapter interface {
	// Load returns the row whose pk column equals id, or ErrNotFound.
	Load(ctx context.Context, table, pk string, id any) (Row, error)
	// FindOne returns the single row matching filter. Zero matches yield
	// ErrNotFound and more than one ErrAmbiguous.
	FindOne(ctx context.Context, table string, filter Filter) (Row, error)
	// FindAllIDs returns the pk values of every row matching filter, ordered by pk.
	FindAllIDs(ctx context.Context, table, pk string, filter Filter) ([]any, error)
	// Upsert inserts or updates row and returns its pk value, which is
	// generated when row carries none. Updates leave columns absent from
	// row unchanged.
	Upsert(ctx context.Context, table, pk string, row Row) (any, error)
	// Delete removes the rows matching filter and reports how many were removed.
	Delete(ctx context.Context, table string, filter Filter) (int64, error)
	// RawQuery projects column out of the rows matching filter.
	RawQuery(ctx context.Context, column, table string, filter Filter) ([]Row, error)
}

// Closer is implemented by adapters holding connections.
type Closer interface {
	Close() error
}

// Config exposes storage configuration options for consumers of the storage package.
type Config struct {
	Driver          string        `koanf:"driver"`
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(storageinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// Open constructs the adapter selected by cfg.Driver.
func Open(cfg Config) (Adapter, error) {
	icfg := cfg.toInternal()
	if err := icfg.Validate(); err != nil {
		return nil, err
	}
	if icfg.Driver == storageinfra.DriverMemory {
		return storageinfra.NewMemoryAdapter(), nil
	}
	adapter, err := storageinfra.OpenBun(icfg)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

// MemoryAdapter is the in-process backend.
type MemoryAdapter = storageinfra.MemoryAdapter

// NewMemory returns an empty in-process adapter, mostly for tests and demos.
func NewMemory() *MemoryAdapter {
	return storageinfra.NewMemoryAdapter()
}

// Normalize maps driver specific scalar representations onto one
// canonical value so ids from different sources compare equal.
func Normalize(v any) any {
	return storageinfra.Normalize(v)
}

func (c Config) toInternal() storageinfra.Config {
	return storageinfra.Config{
		Driver:          c.Driver,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		QueryTimeout:    c.QueryTimeout,
	}
}

func convertFromInternal(cfg storageinfra.Config) Config {
	return Config{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		QueryTimeout:    cfg.QueryTimeout,
	}
}
