package commands

import (
	"github.com/spf13/cobra"
)

// NewFindCommand creates the find command.
func NewFindCommand() *cobra.Command {
	var one bool

	cmd := &cobra.Command{
		Use:   "find <type> [field=value...]",
		Short: "Search entities by field equality",
		Long: `Search entities whose fields equal every given value and hydrate
each match. Values are converted to the declared field type; use null to
match empty columns. Without filters every entity of the type is listed.`,
		Example: `  # Entries written by user 5
  entityctl find Entry User_id=5

  # Exactly one match, or fail
  entityctl find User email=ada@example.com --one`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			sc, err := cmdCtx.lookup(args[0])
			if err != nil {
				return err
			}
			filter, err := parseFilter(sc, args[1:])
			if err != nil {
				return err
			}

			if one {
				e, err := cmdCtx.Store.FindOne(cmd.Context(), sc.Type, filter)
				if err != nil {
					return err
				}
				return writeJSON(cmdCtx.Out, viewOf(e))
			}

			all, err := cmdCtx.Store.FindAll(cmd.Context(), sc.Type, filter)
			if err != nil {
				return err
			}
			return writeJSON(cmdCtx.Out, viewsOf(all))
		},
	}

	cmd.Flags().BoolVar(&one, "one", false, "Require exactly one match")
	return cmd
}
