package entitystore

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-entity-cache/schema"
	goerrors "github.com/goliatone/go-errors"
)

// Validator runs before every persist. Returning an error aborts the write.
type Validator interface {
	Validate(ctx context.Context, s *schema.Schema, fields map[string]any) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, s *schema.Schema, fields map[string]any) error

func (f ValidatorFunc) Validate(ctx context.Context, s *schema.Schema, fields map[string]any) error {
	return f(ctx, s, fields)
}

// NopValidator accepts every entity.
type NopValidator struct{}

func (NopValidator) Validate(context.Context, *schema.Schema, map[string]any) error { return nil }

// SchemaValidator enforces the required and max_length rules declared on
// schema fields. The primary key is skipped since storage assigns it.
type SchemaValidator struct{}

func (SchemaValidator) Validate(_ context.Context, s *schema.Schema, fields map[string]any) error {
	errs := validation.Errors{}
	for _, f := range s.Fields {
		if f.Name == s.PrimaryKey {
			continue
		}
		rules := fieldRules(f)
		if len(rules) == 0 {
			continue
		}
		errs[f.Name] = validation.Validate(fields[f.Name], rules...)
	}

	if err := errs.Filter(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid "+s.Type)
	}
	return nil
}

func fieldRules(f schema.Field) []validation.Rule {
	var rules []validation.Rule
	switch f.Type {
	case schema.TypeString:
		if f.Required {
			rules = append(rules, validation.Required)
		}
		if f.MaxLength > 0 {
			rules = append(rules, validation.RuneLength(0, f.MaxLength))
		}
	case schema.TypeBytes:
		if f.Required {
			rules = append(rules, validation.Required)
		}
		if f.MaxLength > 0 {
			rules = append(rules, validation.Length(0, f.MaxLength))
		}
	default:
		// zero is a legitimate int or bool, so required only rejects nil.
		if f.Required {
			rules = append(rules, validation.NotNil)
		}
	}
	return rules
}
