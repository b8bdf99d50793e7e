package entitystore

import (
	"context"
	"maps"

	"github.com/goliatone/go-entity-cache/relation"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/storage"
)

// Entity is one row of a registered type. Persisted fields live in a map
// keyed by column name; relations are never stored on the entity and are
// resolved through the owning Store on every access.
type Entity struct {
	store  *Store
	schema *schema.Schema
	fields map[string]any
}

// Related is the result of resolving a relation. One is set for
// belongs_to and has_one, Many for has_many and habtm.
type Related struct {
	Kind relation.Kind
	One  *Entity
	Many *Collection
}

// Value returns the resolved entity or collection as a plain value.
func (r Related) Value() any {
	if r.Kind.Many() {
		return r.Many
	}
	return r.One
}

// Type returns the entity type name.
func (e *Entity) Type() string {
	return e.schema.Type
}

// Schema returns the compiled descriptor of the entity type.
func (e *Entity) Schema() *schema.Schema {
	return e.schema
}

// ID returns the primary key, nil until the entity is persisted.
func (e *Entity) ID() any {
	return e.fields[e.schema.PrimaryKey]
}

// HasID reports whether the primary key is set.
func (e *Entity) HasID() bool {
	return e.ID() != nil
}

// Get returns the raw value of a persisted field. Relation and unknown
// names return nil; use Related or Value for relations.
func (e *Entity) Get(name string) any {
	return e.fields[name]
}

// Set assigns a persisted field, coercing v to the field's declared type.
func (e *Entity) Set(name string, v any) error {
	if kind := e.schema.RelationKind(name); kind != relation.None {
		return badInput("%s.%s is a %s relation and cannot be assigned", e.schema.Type, name, kind)
	}
	f, ok := e.schema.Field(name)
	if !ok {
		return badInput("%s has no field %s", e.schema.Type, name)
	}
	cv, err := schema.Coerce(f, v)
	if err != nil {
		return badInput("%s: %v", e.schema.Type, err)
	}
	e.fields[name] = cv
	return nil
}

// SetFields assigns several fields in schema order, stopping at the first
// failure. Unknown and relation names are rejected before anything is assigned.
func (e *Entity) SetFields(values map[string]any) error {
	for name, v := range values {
		if !e.schema.IsPersisted(name) {
			return e.Set(name, v)
		}
	}
	for _, f := range e.schema.Fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		if err := e.Set(f.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// Fields returns a copy of the persisted field values.
func (e *Entity) Fields() map[string]any {
	return maps.Clone(e.fields)
}

// Persist validates and writes the entity through to storage and cache.
func (e *Entity) Persist(ctx context.Context) error {
	return e.store.Persist(ctx, e)
}

// Delete removes the entity's own row when filter is empty, otherwise
// every row of the entity's type matching filter.
func (e *Entity) Delete(ctx context.Context, filter storage.Filter) (int64, error) {
	return e.store.Delete(ctx, e, filter)
}

// Related resolves the relation called name.
func (e *Entity) Related(ctx context.Context, name string) (Related, error) {
	return e.store.Resolve(ctx, e, name)
}

// One resolves a belongs_to or has_one relation.
func (e *Entity) One(ctx context.Context, name string) (*Entity, error) {
	if kind := e.schema.RelationKind(name); kind.Many() {
		return nil, badInput("%s.%s is a %s relation, use Many", e.schema.Type, name, kind)
	}
	rel, err := e.store.Resolve(ctx, e, name)
	if err != nil {
		return nil, err
	}
	return rel.One, nil
}

// Many resolves a has_many or habtm relation.
func (e *Entity) Many(ctx context.Context, name string) (*Collection, error) {
	if kind := e.schema.RelationKind(name); kind != relation.None && !kind.Many() {
		return nil, badInput("%s.%s is a %s relation, use One", e.schema.Type, name, kind)
	}
	rel, err := e.store.Resolve(ctx, e, name)
	if err != nil {
		return nil, err
	}
	return rel.Many, nil
}

// Value resolves name when it is a relation and returns the raw field
// value otherwise.
func (e *Entity) Value(ctx context.Context, name string) (any, error) {
	if e.schema.RelationKind(name) == relation.None {
		return e.Get(name), nil
	}
	rel, err := e.store.Resolve(ctx, e, name)
	if err != nil {
		return nil, err
	}
	return rel.Value(), nil
}
