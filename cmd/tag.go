package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-library/internal/service/library"
)

// NewTagCommand creates the tag command
func NewTagCommand(lib library.Library) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Browse the tags of stored videos",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every tag with the number of videos carrying it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				tags, err := lib.ListTags(ctx, limit)
				if err != nil {
					return fmt.Errorf("failed to list tags: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), tags)
				}
				if len(tags) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tags found in the library.")
					return nil
				}
				return writeTagTable(cmd.OutOrStdout(), tags)
			})
		},
	}

	listCmd.Flags().Int("limit", 0, "Maximum number of tags (0 for all)")
	listCmd.Flags().Bool("json", false, "Print as JSON")
	cmd.AddCommand(listCmd)
	return cmd
}
