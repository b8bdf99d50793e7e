package schema

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-entity-cache/relation"
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry maps entity type names to compiled schemas.
// It is safe for concurrent use.
type Registry struct {
	naming  relation.Naming
	schemas *xsync.MapOf[string, *Schema]
}

// NewRegistry creates an empty registry that compiles schemas with naming.
func NewRegistry(naming relation.Naming) *Registry {
	return &Registry{
		naming:  naming,
		schemas: xsync.NewMapOf[string, *Schema](),
	}
}

// Naming returns the naming convention schemas are compiled with.
func (r *Registry) Naming() relation.Naming {
	return r.naming
}

// Register compiles and stores one or more schemas. Registering a type
// twice replaces the previous descriptor. Foreign key fields derived from
// belongs_to take the primary key type of their target, whichever of the
// two is registered first. Schemas already registered are replaced by an
// aligned copy rather than modified.
func (r *Registry) Register(schemas ...*Schema) error {
	batch := make(map[string]*Schema, len(schemas))
	ordered := make([]*Schema, 0, len(schemas))
	for _, s := range schemas {
		if s == nil {
			continue
		}
		if err := s.Compile(r.naming); err != nil {
			return err
		}
		batch[s.Type] = s
		ordered = append(ordered, s)
	}

	lookup := func(name string) (*Schema, bool) {
		if s, ok := batch[name]; ok {
			return s, true
		}
		return r.schemas.Load(name)
	}

	for _, s := range ordered {
		s.alignForeignKeys(lookup)
	}

	var realigned []*Schema
	r.schemas.Range(func(name string, s *Schema) bool {
		if _, ok := batch[name]; ok {
			return true
		}
		if c := s.clone(); c.alignForeignKeys(lookup) {
			realigned = append(realigned, c)
		}
		return true
	})

	for _, s := range ordered {
		r.schemas.Store(s.Type, s)
	}
	for _, s := range realigned {
		r.schemas.Store(s.Type, s)
	}
	return nil
}

// MustRegister is Register that panics on invalid schemas.
func (r *Registry) MustRegister(schemas ...*Schema) *Registry {
	if err := r.Register(schemas...); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the schema registered for typeName.
func (r *Registry) Lookup(typeName string) (*Schema, bool) {
	return r.schemas.Load(typeName)
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, r.schemas.Size())
	r.schemas.Range(func(name string, _ *Schema) bool {
		types = append(types, name)
		return true
	})
	sort.Strings(types)
	return types
}

// CheckRelations verifies that every relation target is a registered type.
func (r *Registry) CheckRelations() error {
	for _, name := range r.Types() {
		s, _ := r.Lookup(name)
		for _, kind := range relation.Kinds {
			for _, target := range s.relationSet(kind) {
				if _, ok := r.Lookup(target); !ok {
					return fmt.Errorf("schema %s: %s target %s is not registered", name, kind, target)
				}
			}
		}
	}
	return nil
}
