package entitystore

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to every error the store returns.
const (
	TextCodeNotFound             = "NOT_FOUND"
	TextCodeAmbiguousMatch       = "AMBIGUOUS_MATCH"
	TextCodeAdapterFailure       = "ADAPTER_FAILURE"
	TextCodeSerializationFailure = "SERIALIZATION_FAILURE"
	TextCodeBadInput             = "BAD_INPUT"
)

func notFound(typeName string, detail string, meta map[string]any) error {
	return goerrors.New(fmt.Sprintf("%s not found: %s", typeName, detail), goerrors.CategoryNotFound).
		WithTextCode(TextCodeNotFound).
		WithMetadata(map[string]any{"type": typeName}, meta)
}

func ambiguousMatch(typeName string, filter fmt.Stringer) error {
	return goerrors.New(fmt.Sprintf("more than one %s matches %s", typeName, filter), goerrors.CategoryConflict).
		WithTextCode(TextCodeAmbiguousMatch).
		WithMetadata(map[string]any{"type": typeName, "filter": filter.String()})
}

// adapterFailure keeps source reachable through Unwrap.
func adapterFailure(op string, typeName string, source error) error {
	e := goerrors.New(fmt.Sprintf("%s %s failed", op, typeName), goerrors.CategoryExternal).
		WithTextCode(TextCodeAdapterFailure).
		WithMetadata(map[string]any{"type": typeName, "operation": op})
	e.Source = source
	return e
}

func serializationFailure(typeName string, source error) error {
	e := goerrors.New(fmt.Sprintf("cannot serialize %s", typeName), goerrors.CategoryInternal).
		WithTextCode(TextCodeSerializationFailure).
		WithMetadata(map[string]any{"type": typeName})
	e.Source = source
	return e
}

func badInput(format string, args ...any) error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryBadInput).
		WithTextCode(TextCodeBadInput)
}

func hasTextCode(err error, code string) bool {
	var e *goerrors.Error
	if !goerrors.As(err, &e) {
		return false
	}
	return e.TextCode == code
}

// IsNotFound reports whether err means the requested entity or relation
// target does not exist.
func IsNotFound(err error) bool {
	return hasTextCode(err, TextCodeNotFound)
}

// IsAmbiguousMatch reports whether a filter expected to match one row matched several.
func IsAmbiguousMatch(err error) bool {
	return hasTextCode(err, TextCodeAmbiguousMatch)
}

// IsAdapterFailure reports whether a storage or cache backend failed.
func IsAdapterFailure(err error) bool {
	return hasTextCode(err, TextCodeAdapterFailure)
}

// IsSerializationFailure reports whether field values could not be encoded or coerced.
func IsSerializationFailure(err error) bool {
	return hasTextCode(err, TextCodeSerializationFailure)
}

// IsValidation reports whether the validator rejected an entity.
func IsValidation(err error) bool {
	return goerrors.IsValidation(err)
}

// IsBadInput reports whether the call named an unknown type, field or
// relation, or lacked an id it needed.
func IsBadInput(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryBadInput)
}
