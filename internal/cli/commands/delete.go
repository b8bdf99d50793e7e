package commands

import (
	"github.com/goliatone/go-entity-cache/storage"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	var where []string

	cmd := &cobra.Command{
		Use:   "delete <type> [id]",
		Short: "Delete entities and their cache entries",
		Long: `Delete one entity by primary key, or every entity matching --where.
Cache entries are removed before the storage rows.`,
		Example: `  # Delete entry 2
  entityctl delete Entry 2

  # Delete every entry of user 6
  entityctl delete Entry --where User_id=6`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 2) == (len(where) > 0) {
				return goerrors.New("delete needs either an id or --where", goerrors.CategoryBadInput).
					WithTextCode("BAD_INPUT")
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			sc, err := cmdCtx.lookup(args[0])
			if err != nil {
				return err
			}

			var filter storage.Filter
			e, err := cmdCtx.Store.New(sc.Type)
			if err != nil {
				return err
			}
			if len(args) == 2 {
				if err := e.Set(sc.PrimaryKey, args[1]); err != nil {
					return err
				}
			} else if filter, err = parseFilter(sc, where); err != nil {
				return err
			}

			removed, err := e.Delete(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return writeJSON(cmdCtx.Out, map[string]any{"type": sc.Type, "deleted": removed})
		},
	}

	cmd.Flags().StringSliceVar(&where, "where", nil, "field=value filter, repeatable")
	return cmd
}
