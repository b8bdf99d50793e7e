package schema

import (
	"fmt"

	"github.com/goliatone/go-entity-cache/relation"
	goerrors "github.com/goliatone/go-errors"
)

// FieldType is the semantic type of a persisted field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeTime   FieldType = "time"
	TypeBytes  FieldType = "bytes"
	// TypeAny holds composite values (maps, slices) stored as-is.
	TypeAny FieldType = "any"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBool, TypeTime, TypeBytes, TypeAny:
		return true
	}
	return false
}

// Field describes one persisted column.
type Field struct {
	Name      string    `koanf:"name" json:"name"`
	Type      FieldType `koanf:"type" json:"type"`
	Required  bool      `koanf:"required" json:"required,omitempty"`
	MaxLength int       `koanf:"max_length" json:"max_length,omitempty"`
}

// Schema is the explicit descriptor of an entity type: its ordered
// persisted fields and its four relation sets.
type Schema struct {
	Type       string  `koanf:"type" json:"type"`
	Table      string  `koanf:"table" json:"table,omitempty"`
	PrimaryKey string  `koanf:"primary_key" json:"primary_key,omitempty"`
	Fields     []Field `koanf:"fields" json:"fields"`

	BelongsTo []string `koanf:"belongs_to" json:"belongs_to,omitempty"`
	HasOne    []string `koanf:"has_one" json:"has_one,omitempty"`
	HasMany   []string `koanf:"has_many" json:"has_many,omitempty"`
	HABTM     []string `koanf:"habtm" json:"habtm,omitempty"`

	// NoCache routes every read of this type straight to storage.
	NoCache bool `koanf:"no_cache" json:"no_cache,omitempty"`

	fieldIndex  map[string]int
	relations   map[string]relation.Kind
	// foreignKeys maps fk fields added by Compile to their belongs_to target.
	foreignKeys map[string]string
	compiled    bool
}

// Compile validates the descriptor and fills in defaults from the naming
// convention: table name, primary key field and belongs_to foreign keys.
func (s *Schema) Compile(naming relation.Naming) error {
	if s.Type == "" {
		return goerrors.NewValidation("invalid schema", goerrors.FieldError{Field: "type", Message: "cannot be blank"})
	}
	if s.Table == "" {
		s.Table = naming.TableName(s.Type)
	}
	if s.PrimaryKey == "" {
		s.PrimaryKey = naming.PrimaryKey
		if s.PrimaryKey == "" {
			s.PrimaryKey = relation.DefaultNaming().PrimaryKey
		}
	}

	var problems []goerrors.FieldError
	s.fieldIndex = make(map[string]int, len(s.Fields)+len(s.BelongsTo)+1)
	for i, f := range s.Fields {
		if f.Name == "" {
			problems = append(problems, goerrors.FieldError{Field: fmt.Sprintf("fields[%d].name", i), Message: "cannot be blank"})
			continue
		}
		if f.Type == "" {
			s.Fields[i].Type = TypeString
		} else if !f.Type.valid() {
			problems = append(problems, goerrors.FieldError{Field: f.Name, Message: fmt.Sprintf("unknown field type %q", f.Type)})
		}
		if _, dup := s.fieldIndex[f.Name]; dup {
			problems = append(problems, goerrors.FieldError{Field: f.Name, Message: "declared more than once"})
			continue
		}
		s.fieldIndex[f.Name] = i
	}

	if i, ok := s.fieldIndex[s.PrimaryKey]; !ok {
		s.addField(Field{Name: s.PrimaryKey, Type: TypeInt})
	} else if t := s.Fields[i].Type; t != TypeInt && t != TypeString {
		problems = append(problems, goerrors.FieldError{Field: s.PrimaryKey, Message: "primary key must be an int or string field"})
	}

	s.relations = make(map[string]relation.Kind)
	for _, kind := range relation.Kinds {
		for _, name := range s.relationSet(kind) {
			if prev, dup := s.relations[name]; dup {
				problems = append(problems, goerrors.FieldError{
					Field:   name,
					Message: fmt.Sprintf("declared in both %s and %s", prev, kind),
				})
				continue
			}
			if _, isField := s.fieldIndex[name]; isField {
				problems = append(problems, goerrors.FieldError{Field: name, Message: "relation name collides with a persisted field"})
				continue
			}
			s.relations[name] = kind
		}
	}

	// belongs_to foreign keys are plain persisted fields on the owner. Until
	// the target is known they are assumed to reference an int key.
	derived := s.foreignKeys
	s.foreignKeys = make(map[string]string, len(s.BelongsTo))
	for _, target := range s.BelongsTo {
		fk := naming.ForeignKey(target)
		if _, ok := s.fieldIndex[fk]; !ok {
			s.addField(Field{Name: fk, Type: TypeInt})
			s.foreignKeys[fk] = target
		} else if derived[fk] == target {
			s.foreignKeys[fk] = target
		}
	}

	if len(problems) > 0 {
		return goerrors.NewValidation(fmt.Sprintf("invalid schema for %s", s.Type), problems...)
	}

	s.compiled = true
	return nil
}

// alignForeignKeys gives every fk field added by Compile the primary key
// type of its target. Targets lookup cannot find are left alone. It reports
// whether any field changed.
func (s *Schema) alignForeignKeys(lookup func(string) (*Schema, bool)) bool {
	changed := false
	for fk, target := range s.foreignKeys {
		ts, ok := lookup(target)
		if !ok {
			continue
		}
		want := ts.PrimaryKeyField().Type
		if i := s.fieldIndex[fk]; s.Fields[i].Type != want {
			s.Fields[i].Type = want
			changed = true
		}
	}
	return changed
}

// clone copies the descriptor deeply enough that alignForeignKeys on the
// copy leaves the original untouched. Compiled lookup maps are shared.
func (s *Schema) clone() *Schema {
	c := *s
	c.Fields = append([]Field(nil), s.Fields...)
	return &c
}

func (s *Schema) addField(f Field) {
	s.fieldIndex[f.Name] = len(s.Fields)
	s.Fields = append(s.Fields, f)
}

func (s *Schema) relationSet(kind relation.Kind) []string {
	switch kind {
	case relation.BelongsTo:
		return s.BelongsTo
	case relation.HasOne:
		return s.HasOne
	case relation.HasMany:
		return s.HasMany
	case relation.HABTM:
		return s.HABTM
	}
	return nil
}

// Compiled reports whether Compile succeeded on this descriptor.
func (s *Schema) Compiled() bool {
	return s.compiled
}

// Field returns the persisted field named name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// IsPersisted reports whether name is a persisted (non-relation) field.
func (s *Schema) IsPersisted(name string) bool {
	_, ok := s.fieldIndex[name]
	return ok
}

// RelationKind returns the relation set declaring name, or relation.None.
func (s *Schema) RelationKind(name string) relation.Kind {
	if k, ok := s.relations[name]; ok {
		return k
	}
	return relation.None
}

// PrimaryKeyField returns the descriptor of the primary key column.
func (s *Schema) PrimaryKeyField() Field {
	f, _ := s.Field(s.PrimaryKey)
	return f
}

// NormalizeID coerces id to the primary key's semantic type so that ids
// read from storage, cache payloads and callers compare equal.
func (s *Schema) NormalizeID(id any) (any, error) {
	if id == nil {
		return nil, nil
	}
	return Coerce(s.PrimaryKeyField(), id)
}

// Persisted projects values onto the persisted fields of the schema,
// dropping relation names and unknown keys and coercing each value.
// Fields missing from values are omitted.
func (s *Schema) Persisted(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		cv, err := Coerce(f, v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = cv
	}
	return out, nil
}
