package entitystore

import "github.com/goliatone/go-entity-cache/schema"

// Collection is an ordered set of entities of one type keyed by primary key.
type Collection struct {
	schema *schema.Schema
	ids    []any
	items  map[any]*Entity
}

func newCollection(s *schema.Schema, capacity int) *Collection {
	return &Collection{
		schema: s,
		ids:    make([]any, 0, capacity),
		items:  make(map[any]*Entity, capacity),
	}
}

// add appends e unless an entity with the same id is already present.
func (c *Collection) add(e *Entity) bool {
	id := e.ID()
	if _, dup := c.items[id]; dup {
		return false
	}
	c.ids = append(c.ids, id)
	c.items[id] = e
	return true
}

// Type returns the entity type held by the collection.
func (c *Collection) Type() string {
	return c.schema.Type
}

// Len returns the number of entities in the collection.
func (c *Collection) Len() int {
	return len(c.ids)
}

// IDs returns the primary keys in resolution order.
func (c *Collection) IDs() []any {
	return append([]any(nil), c.ids...)
}

// Get returns the entity with the given id. The id is coerced to the
// primary key type first, so Get(1) finds an entity keyed by int64(1).
func (c *Collection) Get(id any) (*Entity, bool) {
	nid, err := c.schema.NormalizeID(id)
	if err != nil {
		return nil, false
	}
	e, ok := c.items[nid]
	return e, ok
}

// All returns the entities in resolution order.
func (c *Collection) All() []*Entity {
	out := make([]*Entity, len(c.ids))
	for i, id := range c.ids {
		out[i] = c.items[id]
	}
	return out
}
