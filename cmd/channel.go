package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-library/internal/service/library"
)

// NewChannelCommand creates the channel command
func NewChannelCommand(lib library.Library) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Read channels stored in the library",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				channels, err := lib.ListChannels(ctx)
				if err != nil {
					return fmt.Errorf("failed to list channels: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), channels)
				}
				if len(channels) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No channels found in the library.")
					return nil
				}
				return writeChannelTable(cmd.OutOrStdout(), channels)
			})
		},
	}

	getCmd := &cobra.Command{
		Use:   "get [CHANNEL_ID]",
		Short: "Show a channel with its stored videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				detail, err := lib.GetChannel(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to get channel: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), detail)
				}

				out := cmd.OutOrStdout()
				c := detail.Channel
				fmt.Fprintf(out, "Channel: %s (%s)\n", c.Name, c.ID)
				if c.Placeholder {
					fmt.Fprintln(out, "Metadata not synced yet; run 'ytlib process' with the channel URL.")
				}
				if c.Description != nil && *c.Description != "" {
					fmt.Fprintf(out, "Description: %s\n", truncateString(*c.Description, 200))
				}
				for _, tab := range []string{"Videos", "Shorts", "Live"} {
					if n, ok := c.ContentBreakdown[tab]; ok {
						fmt.Fprintf(out, "%s: %d\n", tab, n)
					}
				}
				fmt.Fprintf(out, "\nStored videos (%d):\n", len(detail.Videos))
				return writeVideoTable(out, detail.Videos)
			})
		},
	}

	tagsCmd := &cobra.Command{
		Use:   "tags [CHANNEL_ID]",
		Short: "Show the most used tags of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minVideos, _ := cmd.Flags().GetInt("min-videos")
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				tags, err := lib.ListChannelTags(ctx, args[0], minVideos, limit)
				if err != nil {
					return fmt.Errorf("failed to list channel tags: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), tags)
				}
				if len(tags) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tags found for this channel.")
					return nil
				}
				return writeTagTable(cmd.OutOrStdout(), tags)
			})
		},
	}

	listCmd.Flags().Bool("json", false, "Print as JSON")
	getCmd.Flags().Bool("json", false, "Print as JSON")
	tagsCmd.Flags().Int("min-videos", 1, "Only tags used by at least this many videos")
	tagsCmd.Flags().Int("limit", 20, "Maximum number of tags (0 for all)")
	tagsCmd.Flags().Bool("json", false, "Print as JSON")
	cmd.AddCommand(listCmd, getCmd, tagsCmd)
	return cmd
}
