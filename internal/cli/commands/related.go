package commands

import (
	"github.com/spf13/cobra"
)

// NewRelatedCommand creates the related command.
func NewRelatedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "related <type> <id> <relation>",
		Short: "Resolve a declared relation of an entity",
		Long: `Resolve a belongs_to, has_one, has_many or habtm relation of an entity.
Single relations print one entity, collection relations print a list.`,
		Example: `  # Entries of user 5
  entityctl related User 5 Entry

  # Category of entry 1
  entityctl related Entry 1 Category`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			owner, err := cmdCtx.Store.Hydrate(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			related, err := owner.Related(cmd.Context(), args[2])
			if err != nil {
				return err
			}
			if related.Kind.Many() {
				return writeJSON(cmdCtx.Out, viewsOf(related.Many))
			}
			return writeJSON(cmdCtx.Out, viewOf(related.One))
		},
	}
}
