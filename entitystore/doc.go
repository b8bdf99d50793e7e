// Package entitystore hydrates entities of registered schema types from a
// storage adapter, caching their persisted fields in a cache adapter, and
// resolves declared relations lazily.
//
// # Read path
//
// Hydrate builds the cache key "<Type>_<id>" and tries the cache first. A
// hit decodes the snapshot and never touches storage. A miss loads the row,
// returns the entity and writes its snapshot to the cache. Cache read
// errors and undecodable payloads are logged and treated as misses.
//
//	registry := schema.NewRegistry(relation.DefaultNaming())
//	registry.MustRegister(
//		&schema.Schema{Type: "User", Fields: []schema.Field{{Name: "name"}}, HasMany: []string{"Entry"}},
//		&schema.Schema{Type: "Entry", Fields: []schema.Field{{Name: "title"}}, BelongsTo: []string{"User"}},
//	)
//	store, err := entitystore.New(registry, storage.NewMemory(), cacheAdapter)
//	if err != nil {
//		return err
//	}
//	user, err := store.Hydrate(ctx, "User", 5)
//	entries, err := user.Many(ctx, "Entry")
//
// # Write path
//
// Persist validates, upserts and writes the snapshot through to the cache.
// Delete drops cache entries before storage rows, so a failed invalidation
// leaves storage untouched.
//
// # Relations
//
// Names come from the relation package's naming convention:
//
//   - belongs_to Target: the owner's Target_id column
//   - has_one / has_many Target: Target rows whose Owner_id is the owner id
//   - habtm Target: the join table named after both types, sorted
//
// Relations resolve on every access. Nothing is memoized on the owner.
//
// # Errors
//
// Every error is a go-errors *Error. Use IsNotFound, IsAmbiguousMatch,
// IsAdapterFailure, IsSerializationFailure, IsValidation and IsBadInput to
// branch on them.
package entitystore
