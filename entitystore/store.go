package entitystore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/storage"
	goerrors "github.com/goliatone/go-errors"
)

// Store hydrates entities through a cache-aside read path and writes them
// through to storage and cache. It holds no mutable state of its own and
// is safe to share between goroutines when its adapters are.
type Store struct {
	registry  *schema.Registry
	storage   storage.Adapter
	cache     cache.Adapter
	keys      cache.KeyBuilder
	validator Validator
	logger    *slog.Logger
	newID     func() string
}

// New creates a store over the given registry and adapters. A nil cache
// adapter disables caching.
func New(registry *schema.Registry, store storage.Adapter, cacheAdapter cache.Adapter, opts ...Option) (*Store, error) {
	if registry == nil {
		return nil, badInput("entity store requires a schema registry")
	}
	if store == nil {
		return nil, badInput("entity store requires a storage adapter")
	}
	if cacheAdapter == nil {
		cacheAdapter = cache.NewNoopAdapter()
	}

	s := defaultStore()
	s.registry = registry
	s.storage = store
	s.cache = cacheAdapter
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Registry returns the schema registry the store resolves types against.
func (s *Store) Registry() *schema.Registry {
	return s.registry
}

func (s *Store) lookup(typeName string) (*schema.Schema, error) {
	sc, ok := s.registry.Lookup(typeName)
	if !ok {
		return nil, badInput("unknown entity type %s", typeName)
	}
	return sc, nil
}

func (s *Store) entity(sc *schema.Schema, fields map[string]any) *Entity {
	if fields == nil {
		fields = make(map[string]any, len(sc.Fields))
	}
	return &Entity{store: s, schema: sc, fields: fields}
}

// New returns a transient entity of typeName with no id. No I/O happens.
func (s *Store) New(typeName string) (*Entity, error) {
	sc, err := s.lookup(typeName)
	if err != nil {
		return nil, err
	}
	return s.entity(sc, nil), nil
}

// Hydrate returns the entity of typeName with primary key id, reading the
// cache first and falling back to storage.
func (s *Store) Hydrate(ctx context.Context, typeName string, id any) (*Entity, error) {
	sc, err := s.lookup(typeName)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, badInput("%s: id is required", typeName)
	}
	nid, err := sc.NormalizeID(id)
	if err != nil {
		return nil, badInput("%s: %v", typeName, err)
	}
	return s.hydrate(ctx, sc, nid)
}

func (s *Store) hydrate(ctx context.Context, sc *schema.Schema, id any) (*Entity, error) {
	key := s.keys.EntityKey(sc.Type, id)

	if !sc.NoCache && !cacheBypassed(ctx) {
		if fields, ok := s.readCache(ctx, sc, key); ok {
			fields[sc.PrimaryKey] = id
			return s.entity(sc, fields), nil
		}
	}

	row, err := s.storage.Load(ctx, sc.Table, sc.PrimaryKey, id)
	if err != nil {
		if goerrors.Is(err, storage.ErrNotFound) {
			return nil, notFound(sc.Type, fmt.Sprintf("%s=%v", sc.PrimaryKey, id), map[string]any{"id": id})
		}
		return nil, adapterFailure("load", sc.Type, err)
	}

	fields, err := sc.Persisted(row)
	if err != nil {
		return nil, serializationFailure(sc.Type, err)
	}
	if fields[sc.PrimaryKey] == nil {
		fields[sc.PrimaryKey] = id
	}

	e := s.entity(sc, fields)
	if !sc.NoCache {
		if err := s.CacheEntity(ctx, e); err != nil {
			s.warn(ctx, "cache populate failed", err, slog.String("key", key))
		}
	}
	return e, nil
}

// readCache returns the decoded snapshot under key. Misses, backend errors
// and undecodable payloads all report ok=false so the caller reads storage.
func (s *Store) readCache(ctx context.Context, sc *schema.Schema, key string) (map[string]any, bool) {
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		if cache.IsMiss(err) {
			s.logger.DebugContext(ctx, "cache miss", slog.String("key", key))
		} else {
			s.warn(ctx, "cache read failed, loading from storage", err, slog.String("key", key))
		}
		return nil, false
	}

	fields, err := sc.DecodeSnapshot(payload)
	if err != nil {
		s.warn(ctx, "discarding undecodable cache entry", serializationFailure(sc.Type, err), slog.String("key", key))
		if derr := s.cache.Delete(ctx, key); derr != nil {
			s.warn(ctx, "cache delete failed", derr, slog.String("key", key))
		}
		return nil, false
	}

	s.logger.DebugContext(ctx, "cache hit", slog.String("key", key))
	return fields, true
}

// FindOne hydrates the single entity of typeName matching filter.
func (s *Store) FindOne(ctx context.Context, typeName string, filter storage.Filter) (*Entity, error) {
	sc, err := s.lookup(typeName)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, sc, filter)
}

func (s *Store) findOne(ctx context.Context, sc *schema.Schema, filter storage.Filter) (*Entity, error) {
	row, err := s.storage.FindOne(ctx, sc.Table, filter)
	switch {
	case err == nil:
	case goerrors.Is(err, storage.ErrNotFound):
		return nil, notFound(sc.Type, filter.String(), map[string]any{"filter": filter.String()})
	case goerrors.Is(err, storage.ErrAmbiguous):
		return nil, ambiguousMatch(sc.Type, filter)
	default:
		return nil, adapterFailure("find", sc.Type, err)
	}

	id, err := sc.NormalizeID(row[sc.PrimaryKey])
	if err != nil {
		return nil, serializationFailure(sc.Type, err)
	}
	if id == nil {
		return nil, serializationFailure(sc.Type, fmt.Errorf("row matching %s has no %s", filter, sc.PrimaryKey))
	}
	return s.hydrate(ctx, sc, id)
}

// FindAll hydrates every entity of typeName matching filter, ordered by
// primary key. An empty filter matches every row.
func (s *Store) FindAll(ctx context.Context, typeName string, filter storage.Filter) (*Collection, error) {
	sc, err := s.lookup(typeName)
	if err != nil {
		return nil, err
	}
	ids, err := s.storage.FindAllIDs(ctx, sc.Table, sc.PrimaryKey, filter)
	if err != nil {
		return nil, adapterFailure("find", sc.Type, err)
	}
	return s.collect(ctx, sc, ids)
}

func (s *Store) collect(ctx context.Context, sc *schema.Schema, ids []any) (*Collection, error) {
	c := newCollection(sc, len(ids))
	for _, raw := range ids {
		id, err := sc.NormalizeID(raw)
		if err != nil {
			return nil, serializationFailure(sc.Type, err)
		}
		if id == nil {
			continue
		}
		if _, dup := c.items[id]; dup {
			continue
		}
		e, err := s.hydrate(ctx, sc, id)
		if err != nil {
			return nil, err
		}
		c.add(e)
	}
	return c, nil
}

// CacheEntity writes the persisted fields of e to the cache under its key.
func (s *Store) CacheEntity(ctx context.Context, e *Entity) error {
	sc := e.schema
	if !e.HasID() {
		return badInput("cannot cache %s without an id", sc.Type)
	}
	payload, err := sc.EncodeSnapshot(e.fields)
	if err != nil {
		return serializationFailure(sc.Type, err)
	}
	if err := s.cache.Set(ctx, s.keys.EntityKey(sc.Type, e.ID()), payload); err != nil {
		return adapterFailure("cache", sc.Type, err)
	}
	return nil
}

// Persist validates e, upserts it and writes the snapshot through to the
// cache. Entities without an id get one assigned: generated by storage for
// integer keys and by the store for string keys.
func (s *Store) Persist(ctx context.Context, e *Entity) error {
	sc := e.schema

	if err := s.validator.Validate(ctx, sc, e.fields); err != nil {
		var ge *goerrors.Error
		if goerrors.As(err, &ge) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid "+sc.Type)
	}

	row, err := sc.Persisted(e.fields)
	if err != nil {
		return serializationFailure(sc.Type, err)
	}
	// Storage updates only the columns present, so a partial entity with an
	// id is reloaded before its snapshot is cached.
	partial := row[sc.PrimaryKey] != nil && len(row) < len(sc.Fields)
	if row[sc.PrimaryKey] == nil {
		delete(row, sc.PrimaryKey)
		if sc.PrimaryKeyField().Type == schema.TypeString {
			row[sc.PrimaryKey] = s.newID()
		}
	}

	id, err := s.storage.Upsert(ctx, sc.Table, sc.PrimaryKey, row)
	if err != nil {
		return adapterFailure("persist", sc.Type, err)
	}
	nid, err := sc.NormalizeID(id)
	if err != nil {
		return serializationFailure(sc.Type, err)
	}
	e.fields[sc.PrimaryKey] = nid

	if sc.NoCache {
		return nil
	}
	if partial {
		if err := s.completeFields(ctx, e); err != nil {
			key := s.keys.EntityKey(sc.Type, nid)
			s.warn(ctx, "reload after partial update failed, dropping entry", err, slog.String("key", key))
			if derr := s.cache.Delete(ctx, key); derr != nil {
				return adapterFailure("cache", sc.Type, goerrors.Join(err, derr))
			}
			return nil
		}
	}
	if err := s.CacheEntity(ctx, e); err != nil {
		key := s.keys.EntityKey(sc.Type, nid)
		s.warn(ctx, "cache write-through failed, dropping entry", err, slog.String("key", key))
		if derr := s.cache.Delete(ctx, key); derr != nil {
			return adapterFailure("cache", sc.Type, goerrors.Join(err, derr))
		}
	}
	return nil
}

// completeFields fills the persisted fields e does not hold from its
// stored row. Values already on e are kept.
func (s *Store) completeFields(ctx context.Context, e *Entity) error {
	sc := e.schema
	row, err := s.storage.Load(ctx, sc.Table, sc.PrimaryKey, e.ID())
	if err != nil {
		return adapterFailure("load", sc.Type, err)
	}
	stored, err := sc.Persisted(row)
	if err != nil {
		return serializationFailure(sc.Type, err)
	}
	for name, v := range stored {
		if _, ok := e.fields[name]; !ok {
			e.fields[name] = v
		}
	}
	return nil
}

// Delete removes cache entries before storage rows. With an empty filter
// only e's own row is targeted and e must have an id. Otherwise the ids
// matching filter are looked up so their cache entries can be dropped.
// A failed cache delete aborts before storage is touched.
func (s *Store) Delete(ctx context.Context, e *Entity, filter storage.Filter) (int64, error) {
	sc := e.schema

	var ids []any
	if len(filter) == 0 {
		if !e.HasID() {
			return 0, badInput("cannot delete %s without an id or a filter", sc.Type)
		}
		filter = storage.Filter{sc.PrimaryKey: e.ID()}
		ids = []any{e.ID()}
	} else if !sc.NoCache {
		var err error
		ids, err = s.storage.FindAllIDs(ctx, sc.Table, sc.PrimaryKey, filter)
		if err != nil {
			return 0, adapterFailure("delete", sc.Type, err)
		}
	}

	if !sc.NoCache && len(ids) > 0 {
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			nid, err := sc.NormalizeID(id)
			if err != nil {
				return 0, serializationFailure(sc.Type, err)
			}
			keys = append(keys, s.keys.EntityKey(sc.Type, nid))
		}
		if err := cache.InvalidateKeys(ctx, s.cache, keys...); err != nil {
			return 0, adapterFailure("invalidate", sc.Type, err)
		}
	}

	n, err := s.storage.Delete(ctx, sc.Table, filter)
	if err != nil {
		return 0, adapterFailure("delete", sc.Type, err)
	}
	s.logger.DebugContext(ctx, "deleted entities",
		slog.String("type", sc.Type),
		slog.String("filter", filter.String()),
		slog.Int64("rows", n),
	)
	return n, nil
}

// InvalidateType drops every cached entry of typeName. It needs an adapter
// that can enumerate keys (memory or redis).
func (s *Store) InvalidateType(ctx context.Context, typeName string) error {
	sc, err := s.lookup(typeName)
	if err != nil {
		return err
	}
	if err := cache.DeleteByPrefix(ctx, s.cache, sc.Type+cache.KeySeparator); err != nil {
		return adapterFailure("invalidate", sc.Type, err)
	}
	return nil
}

func (s *Store) warn(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("error", err.Error()))
	attrs = append(attrs, goerrors.ToSlogAttributes(err)...)
	s.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}
