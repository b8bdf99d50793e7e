package entitystore

import (
	"io"
	"log/slog"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/google/uuid"
)

// Option customizes a Store.
type Option func(*Store)

// WithLogger routes store diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithValidator replaces the default SchemaValidator.
func WithValidator(v Validator) Option {
	return func(s *Store) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithKeyBuilder replaces the default cache key builder.
func WithKeyBuilder(kb cache.KeyBuilder) Option {
	return func(s *Store) {
		if kb != nil {
			s.keys = kb
		}
	}
}

// WithIDGenerator sets the generator for string primary keys.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func defaultStore() *Store {
	return &Store{
		keys:      cache.NewDefaultKeyBuilder(),
		validator: SchemaValidator{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:     uuid.NewString,
	}
}
