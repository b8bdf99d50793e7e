package commands

import (
	"github.com/spf13/cobra"
)

// NewInvalidateCommand creates the invalidate command.
func NewInvalidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <type>...",
		Short: "Drop every cached entry of the given types",
		Long: `Drop every cached snapshot of the given entity types. Storage is not
touched; the next read of each entity repopulates the cache.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, typeName := range args {
				if err := cmdCtx.Store.InvalidateType(cmd.Context(), typeName); err != nil {
					return err
				}
			}
			return writeJSON(cmdCtx.Out, map[string]any{"invalidated": args})
		},
	}
}
