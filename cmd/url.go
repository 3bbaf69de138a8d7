package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-library/internal/service/library"
)

// NewProcessCommand creates the process command
func NewProcessCommand(lib library.Library) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [URL]",
		Short: "Add or refresh the channel, video or playlist behind a YouTube URL",
		Long: `Resolve a YouTube URL and sync the entity it points at.
An entity synced recently is returned from the library unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			asJSON, _ := cmd.Flags().GetBool("json")

			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				summary, err := lib.ProcessURL(ctx, args[0], force)
				if err != nil {
					return fmt.Errorf("failed to process URL: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), summary)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s: %s\n", summary.Action, summary.Kind, summary.ID, summary.Title)
				return nil
			})
		},
	}

	cmd.Flags().Bool("force", false, "Sync even when the stored entity is fresh")
	cmd.Flags().Bool("json", false, "Print the stored entity as JSON")
	return cmd
}
