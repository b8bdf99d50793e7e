package commands

import (
	"github.com/goliatone/go-entity-cache/entitystore"
	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var fresh bool

	cmd := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Hydrate an entity by primary key",
		Long: `Hydrate an entity by primary key through the cache-aside store.

A cache hit is served without touching storage; a miss loads the row and
populates the cache.`,
		Example: `  # Print user 5
  entityctl get User 5

  # Read straight from storage
  entityctl get User 5 --fresh`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			if fresh {
				ctx = entitystore.WithoutCache(ctx)
			}
			e, err := cmdCtx.Store.Hydrate(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmdCtx.Out, viewOf(e))
		},
	}

	cmd.Flags().BoolVar(&fresh, "fresh", false, "Bypass the cache and read from storage")
	return cmd
}
