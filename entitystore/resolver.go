package entitystore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-entity-cache/relation"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/storage"
	goerrors "github.com/goliatone/go-errors"
)

// Resolve loads the relation called name for owner. Every call goes back
// through the cache-aside path; results are not memoized on the owner and
// the owner's fields are never modified.
func (s *Store) Resolve(ctx context.Context, owner *Entity, name string) (Related, error) {
	kind := owner.schema.RelationKind(name)
	if kind == relation.None {
		return Related{}, badInput("%s has no relation %s", owner.schema.Type, name)
	}
	target, err := s.lookup(name)
	if err != nil {
		return Related{}, err
	}

	d := s.registry.Naming().Describe(owner.schema.Type, target.Type, kind)
	// a schema may declare its own table; join tables always follow the type names.
	if kind != relation.HABTM {
		d.Table = target.Table
	}

	s.logger.DebugContext(ctx, "resolving relation",
		slog.String("owner", owner.schema.Type),
		slog.Any("id", owner.ID()),
		slog.String("relation", name),
		slog.String("kind", kind.String()),
	)

	rel := Related{Kind: kind}
	switch kind {
	case relation.BelongsTo:
		rel.One, err = s.resolveBelongsTo(ctx, owner, target, d)
	case relation.HasOne:
		rel.One, err = s.resolveHasOne(ctx, owner, target, d)
	case relation.HasMany:
		rel.Many, err = s.resolveHasMany(ctx, owner, target, d)
	case relation.HABTM:
		rel.Many, err = s.resolveHABTM(ctx, owner, target, d)
	}
	if err != nil {
		return Related{}, err
	}
	return rel, nil
}

func (s *Store) resolveBelongsTo(ctx context.Context, owner *Entity, target *schema.Schema, d relation.Descriptor) (*Entity, error) {
	fk := owner.fields[d.KeyColumn]
	if fk == nil {
		return nil, notFound(target.Type, fmt.Sprintf("%s %v has no %s", owner.schema.Type, owner.ID(), d.KeyColumn), nil)
	}
	id, err := target.NormalizeID(fk)
	if err != nil {
		return nil, serializationFailure(target.Type, err)
	}
	return s.hydrate(ctx, target, id)
}

func (s *Store) resolveHasOne(ctx context.Context, owner *Entity, target *schema.Schema, d relation.Descriptor) (*Entity, error) {
	if !owner.HasID() {
		return nil, notFound(target.Type, fmt.Sprintf("unsaved %s has no %s", owner.schema.Type, target.Type), nil)
	}
	return s.findOne(ctx, target, storage.Filter{d.KeyColumn: owner.ID()})
}

func (s *Store) resolveHasMany(ctx context.Context, owner *Entity, target *schema.Schema, d relation.Descriptor) (*Collection, error) {
	if !owner.HasID() {
		return newCollection(target, 0), nil
	}
	ids, err := s.storage.FindAllIDs(ctx, d.Table, target.PrimaryKey, storage.Filter{d.KeyColumn: owner.ID()})
	if err != nil {
		return nil, adapterFailure("resolve", target.Type, err)
	}
	return s.collect(ctx, target, ids)
}

func (s *Store) resolveHABTM(ctx context.Context, owner *Entity, target *schema.Schema, d relation.Descriptor) (*Collection, error) {
	if !owner.HasID() {
		return newCollection(target, 0), nil
	}
	rows, err := s.storage.RawQuery(ctx, d.TargetColumn, d.Table, storage.Filter{d.KeyColumn: owner.ID()})
	if err != nil {
		return nil, adapterFailure("resolve", target.Type, err)
	}

	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		if id, ok := row[d.TargetColumn]; ok {
			ids = append(ids, id)
		}
	}

	c, err := s.collect(ctx, target, ids)
	if err != nil && IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryNotFound, fmt.Sprintf("join table %s references a missing row", d.Table))
	}
	return c, err
}
