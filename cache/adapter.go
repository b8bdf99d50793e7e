package cache

import (
	"context"
	"errors"

	"github.com/goliatone/go-entity-cache/internal/cacheinfra"
)

// ErrMiss is returned by Adapter.Get when the key holds no entry.
var ErrMiss = cacheinfra.ErrMiss

// Adapter is the byte-oriented key/value contract the entity store caches through.
// Implementations must report an absent key as ErrMiss and treat deleting
// an absent key as success.
type Adapter interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// PrefixDeleter is implemented by adapters that can drop every key sharing a prefix.
type PrefixDeleter interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// IsMiss reports whether err signals an absent key.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// InvalidateKeys removes multiple entries and reports every failure.
func InvalidateKeys(ctx context.Context, adapter Adapter, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := adapter.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeleteByPrefix removes every key starting with prefix. It returns
// ErrPrefixUnsupported when the adapter cannot enumerate its keys.
func DeleteByPrefix(ctx context.Context, adapter Adapter, prefix string) error {
	pd, ok := adapter.(PrefixDeleter)
	if !ok {
		return ErrPrefixUnsupported
	}
	return pd.DeleteByPrefix(ctx, prefix)
}

// ErrPrefixUnsupported is returned by DeleteByPrefix for adapters without key enumeration.
var ErrPrefixUnsupported = errors.New("cache: adapter does not support prefix deletes")
