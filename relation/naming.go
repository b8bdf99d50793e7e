package relation

import (
	"fmt"

	"github.com/jinzhu/inflection"
)

// Kind enumerates the relation sets an entity type can declare.
type Kind int

const (
	// None marks a name that is not declared in any relation set.
	None Kind = iota
	BelongsTo
	HasOne
	HasMany
	HABTM
)

// Kinds lists the relation kinds in resolution priority order.
var Kinds = []Kind{BelongsTo, HasOne, HasMany, HABTM}

func (k Kind) String() string {
	switch k {
	case BelongsTo:
		return "belongs_to"
	case HasOne:
		return "has_one"
	case HasMany:
		return "has_many"
	case HABTM:
		return "habtm"
	default:
		return "none"
	}
}

// MarshalText encodes the kind by its relation set name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Many reports whether the relation resolves to a collection.
func (k Kind) Many() bool {
	return k == HasMany || k == HABTM
}

// ParseKind maps a relation set name to its Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "belongs_to":
		return BelongsTo, nil
	case "has_one":
		return HasOne, nil
	case "has_many":
		return HasMany, nil
	case "habtm", "has_and_belongs_to_many":
		return HABTM, nil
	}
	return None, fmt.Errorf("unknown relation kind %q", s)
}

// TableStrategy controls how a type name maps to a table name.
type TableStrategy string

const (
	// TablesAsTypes uses the type name verbatim ("Entry" -> "Entry").
	TablesAsTypes TableStrategy = "type"
	// TablesPluralSnake pluralizes the snake_case type name ("BlogEntry" -> "blog_entries").
	TablesPluralSnake TableStrategy = "plural_snake"
)

// Naming holds the separators and strategies of the naming convention.
// All methods are pure: the same inputs always produce the same names.
type Naming struct {
	// PrimaryKey is the primary key column every type uses by convention.
	PrimaryKey string
	// KeySeparator joins a type name with the primary key to form a foreign key.
	KeySeparator string
	// JoinSeparator joins the two sides of a habtm join table name.
	JoinSeparator string
	// Tables selects the type to table mapping.
	Tables TableStrategy
}

// DefaultNaming returns the conventional naming: "Target_id" foreign keys,
// "A_B" join tables and tables named after their types.
func DefaultNaming() Naming {
	return Naming{
		PrimaryKey:    "id",
		KeySeparator:  "_",
		JoinSeparator: "_",
		Tables:        TablesAsTypes,
	}
}

func (n Naming) withDefaults() Naming {
	d := DefaultNaming()
	if n.PrimaryKey == "" {
		n.PrimaryKey = d.PrimaryKey
	}
	if n.KeySeparator == "" {
		n.KeySeparator = d.KeySeparator
	}
	if n.JoinSeparator == "" {
		n.JoinSeparator = d.JoinSeparator
	}
	if n.Tables == "" {
		n.Tables = d.Tables
	}
	return n
}

// TableName returns the table holding rows of typeName.
func (n Naming) TableName(typeName string) string {
	n = n.withDefaults()
	if n.Tables == TablesPluralSnake {
		return inflection.Plural(toSnake(typeName))
	}
	return typeName
}

// ForeignKey returns the column that references typeName's primary key.
func (n Naming) ForeignKey(typeName string) string {
	n = n.withDefaults()
	return typeName + n.KeySeparator + n.PrimaryKey
}

// JoinTable returns the habtm join table for two types. The smaller name
// always comes first, so JoinTable(a, b) == JoinTable(b, a).
func (n Naming) JoinTable(a, b string) string {
	n = n.withDefaults()
	a, b = n.joinName(a), n.joinName(b)
	if b < a {
		a, b = b, a
	}
	return a + n.JoinSeparator + b
}

func (n Naming) joinName(typeName string) string {
	if n.Tables == TablesPluralSnake {
		return toSnake(typeName)
	}
	return typeName
}

// Descriptor is the storage shape of one relation, derived from names only.
type Descriptor struct {
	Kind   Kind   `json:"kind"`
	Owner  string `json:"owner"`
	Target string `json:"target"`

	// Table is the table queried during resolution: the target table for
	// belongs_to/has_one/has_many and the join table for habtm.
	Table string `json:"table"`
	// KeyColumn is the foreign key read from the owner (belongs_to) or the
	// column matched against the owner's id (has_one, has_many, habtm).
	KeyColumn string `json:"key_column"`
	// TargetColumn is the join table column holding target ids (habtm only).
	TargetColumn string `json:"target_column,omitempty"`
}

// Describe computes the descriptor for owner's relation of the given kind to target.
func (n Naming) Describe(owner, target string, kind Kind) Descriptor {
	d := Descriptor{Kind: kind, Owner: owner, Target: target}
	switch kind {
	case BelongsTo:
		d.Table = n.TableName(target)
		d.KeyColumn = n.ForeignKey(target)
	case HasOne, HasMany:
		d.Table = n.TableName(target)
		d.KeyColumn = n.ForeignKey(owner)
	case HABTM:
		d.Table = n.JoinTable(owner, target)
		d.KeyColumn = n.ForeignKey(owner)
		d.TargetColumn = n.ForeignKey(target)
	}
	return d
}
