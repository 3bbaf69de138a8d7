package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-library/internal/service/library"
)

// NewTranscriptCommand creates the transcript command
func NewTranscriptCommand(lib library.Library) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript [VIDEO_ID]",
		Short: "Show the transcript of a video",
		Long: `Show the transcript of a video split into its chapters.
The transcript is fetched once and served from the library afterwards.
Use --refresh to fetch it again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refresh, _ := cmd.Flags().GetBool("refresh")
			asJSON, _ := cmd.Flags().GetBool("json")

			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				t, err := lib.GetTranscript(ctx, args[0], refresh)
				if err != nil {
					return fmt.Errorf("failed to get transcript: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), t)
				}
				fmt.Fprint(cmd.OutOrStdout(), formatTranscript(t))
				return nil
			})
		},
	}

	cmd.Flags().Bool("refresh", false, "Fetch the transcript again")
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}
