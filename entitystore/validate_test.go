package entitystore

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/goliatone/go-entity-cache/relation"
	"github.com/goliatone/go-entity-cache/schema"
	goerrors "github.com/goliatone/go-errors"
)

func TestSchemaValidator(t *testing.T) {
	s := &schema.Schema{
		Type: "Account",
		Fields: []schema.Field{
			{Name: "handle", Type: schema.TypeString, Required: true, MaxLength: 8},
			{Name: "bio", Type: schema.TypeString, MaxLength: 4},
			{Name: "age", Type: schema.TypeInt, Required: true},
			{Name: "active", Type: schema.TypeBool, Required: true},
			{Name: "avatar", Type: schema.TypeBytes, MaxLength: 2},
		},
	}
	if err := s.Compile(relation.DefaultNaming()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		fields     map[string]any
		wantFields []string
	}{
		{
			name:   "valid",
			fields: map[string]any{"handle": "ada", "age": int64(0), "active": false},
		},
		{
			name:       "missing required",
			fields:     map[string]any{},
			wantFields: []string{"active", "age", "handle"},
		},
		{
			name:       "blank string is missing",
			fields:     map[string]any{"handle": "", "age": int64(1), "active": true},
			wantFields: []string{"handle"},
		},
		{
			name:       "too long",
			fields:     map[string]any{"handle": "ada lovelace", "bio": "hello", "age": int64(1), "active": true, "avatar": []byte("abc")},
			wantFields: []string{"avatar", "bio", "handle"},
		},
		{
			name:   "length counts runes",
			fields: map[string]any{"handle": "ñandú", "bio": "ñañá", "age": int64(1), "active": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SchemaValidator{}.Validate(context.Background(), s, tt.fields)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			verrs, ok := goerrors.GetValidationErrors(err)
			if !ok {
				t.Fatalf("expected field errors on %v", err)
			}
			var got []string
			for _, fe := range verrs {
				got = append(got, fe.Field)
			}
			sort.Strings(got)
			if strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("invalid fields = %v, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestSchemaValidator_SkipsPrimaryKey(t *testing.T) {
	s := &schema.Schema{
		Type:   "Session",
		Fields: []schema.Field{{Name: "id", Type: schema.TypeString, Required: true}},
	}
	if err := s.Compile(relation.DefaultNaming()); err != nil {
		t.Fatal(err)
	}
	if err := (SchemaValidator{}).Validate(context.Background(), s, map[string]any{}); err != nil {
		t.Errorf("primary key is assigned on persist and must not be validated, got %v", err)
	}
}
