package commands

import (
	"github.com/goliatone/go-entity-cache/relation"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/spf13/cobra"
)

// relationView describes a relation with the tables and columns it resolves through.
type relationView struct {
	Name string `json:"name"`
	relation.Descriptor
}

type schemaView struct {
	*schema.Schema
	Relations []relationView `json:"relations,omitempty"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [type...]",
		Short: "Print the compiled entity schemas",
		Long: `Print every configured entity type, or only the named ones, after
compilation: table, primary key, persisted fields including foreign keys,
and the tables and columns each relation resolves through.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			registry := cmdCtx.Container.Registry()
			types := args
			if len(types) == 0 {
				types = registry.Types()
			}

			views := make([]schemaView, 0, len(types))
			for _, name := range types {
				sc, err := cmdCtx.lookup(name)
				if err != nil {
					return err
				}
				views = append(views, schemaView{Schema: sc, Relations: describeRelations(registry, sc)})
			}
			return writeJSON(cmdCtx.Out, views)
		},
	}
}

func describeRelations(registry *schema.Registry, sc *schema.Schema) []relationView {
	var out []relationView
	sets := []struct {
		kind    relation.Kind
		targets []string
	}{
		{relation.BelongsTo, sc.BelongsTo},
		{relation.HasOne, sc.HasOne},
		{relation.HasMany, sc.HasMany},
		{relation.HABTM, sc.HABTM},
	}
	for _, set := range sets {
		for _, target := range set.targets {
			d := registry.Naming().Describe(sc.Type, target, set.kind)
			if ts, ok := registry.Lookup(target); ok && set.kind != relation.HABTM {
				d.Table = ts.Table
			}
			out = append(out, relationView{Name: target, Descriptor: d})
		}
	}
	return out
}
