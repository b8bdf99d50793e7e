// Package commands implements the entityctl subcommands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-entity-cache/config"
	"github.com/goliatone/go-entity-cache/entitystore"
	"github.com/goliatone/go-entity-cache/pkg/di"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/storage"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
)

type configKey struct{}

// WithConfig stores the loaded configuration on ctx.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey{}, cfg)
}

// getConfig returns the configuration loaded by the root command, or the
// defaults when the command runs standalone.
func getConfig(ctx context.Context) config.Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok && cfg != nil {
			return *cfg
		}
	}
	return config.Default()
}

// CommandContext holds the shared dependencies of a command run.
type CommandContext struct {
	Cfg       config.Config
	Container *di.Container
	Store     *entitystore.Store
	Out       io.Writer
}

// NewCommandContext builds the container for cmd. The returned cleanup
// closes storage and cache connections.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig(cmd.Context())

	container, err := di.NewContainer(cfg)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = container.Close()
	}

	return &CommandContext{
		Cfg:       cfg,
		Container: container,
		Store:     container.Store(),
		Out:       cmd.OutOrStdout(),
	}, cleanup, nil
}

// lookup resolves typeName against the configured registry.
func (c *CommandContext) lookup(typeName string) (*schema.Schema, error) {
	sc, ok := c.Container.Registry().Lookup(typeName)
	if !ok {
		return nil, goerrors.New("unknown entity type "+typeName, goerrors.CategoryBadInput).
			WithTextCode("BAD_INPUT").
			WithMetadata(map[string]any{"known": c.Container.Registry().Types()})
	}
	return sc, nil
}

// parseFilter turns key=value arguments into a storage filter, coercing
// each value to the declared field type. The literal null matches NULL.
func parseFilter(sc *schema.Schema, args []string) (storage.Filter, error) {
	filter := make(storage.Filter, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, goerrors.New(fmt.Sprintf("invalid filter %q, expected key=value", arg), goerrors.CategoryBadInput).
				WithTextCode("BAD_INPUT")
		}
		field, ok := sc.Field(key)
		if !ok {
			return nil, goerrors.New(fmt.Sprintf("%s has no field %s", sc.Type, key), goerrors.CategoryBadInput).
				WithTextCode("BAD_INPUT")
		}
		if raw == "null" {
			filter[key] = nil
			continue
		}
		v, err := schema.Coerce(field, raw)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid filter value for "+key)
		}
		filter[key] = v
	}
	return filter, nil
}

// entityView is the JSON shape of a single entity.
type entityView struct {
	Type   string         `json:"type"`
	ID     any            `json:"id"`
	Fields map[string]any `json:"fields"`
}

func viewOf(e *entitystore.Entity) entityView {
	return entityView{Type: e.Type(), ID: e.ID(), Fields: e.Fields()}
}

func viewsOf(c *entitystore.Collection) []entityView {
	views := make([]entityView, 0, c.Len())
	for _, e := range c.All() {
		views = append(views, viewOf(e))
	}
	return views
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
