// Package cache provides the byte-oriented cache adapters and the key
// builder used by the entity store.
//
// # Overview
//
// The package exports two main interfaces and their default implementations:
//
//   - Adapter: Get, Set and Delete of serialized entity snapshots
//   - KeyBuilder: derives "<Type>_<id>" keys from an entity type and primary key
//
// Three adapters ship with the package:
//
//   - memory: an in-process sturdyc client with sharding, TTL and eviction
//   - redis: a go-redis client, optionally clustered, with a key prefix and TTL
//   - noop: never stores anything, useful to disable caching without code changes
//
// # Basic Usage
//
//	adapter, err := cache.Open(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	keys := cache.NewDefaultKeyBuilder()
//	payload, err := adapter.Get(ctx, keys.EntityKey("User", 5))
//	if cache.IsMiss(err) {
//		// load from storage
//	}
//
// # Key Strategy
//
// Keys are the type name and the primary key joined by KeySeparator.
// Integer ids of any width render the same way, so an id read back from a
// driver as int64 hits the entry written for an int. Keys longer than the
// configured maximum (250 bytes by default, the memcached limit) or holding
// whitespace are replaced by "<Type>_h" followed by the 64 bit xxhash of the
// full key. The type prefix is kept so DeleteByPrefix can still drop every
// entry of one type.
//
// # Errors
//
// Adapters report absent keys with ErrMiss. Any other error means the
// backend failed; the entity store treats read failures as misses and
// surfaces write and delete failures to the caller.
package cache
