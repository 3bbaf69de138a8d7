package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-library/internal/model"
	"github.com/Taichi-iskw/yt-library/internal/service/library"
)

// NewPlaylistCommand creates the playlist command
func NewPlaylistCommand(lib library.Library) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Read and delete playlists stored in the library",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored playlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				playlists, err := lib.ListPlaylists(ctx)
				if err != nil {
					return fmt.Errorf("failed to list playlists: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(playlists) == 0 {
					fmt.Fprintln(out, "No playlists found in the library.")
					return nil
				}
				for _, p := range playlists {
					count := "?"
					if p.VideoCount != nil {
						count = fmt.Sprintf("%d", *p.VideoCount)
					}
					fmt.Fprintf(out, "%s  %s (%s videos)\n", p.ID, p.Title, count)
				}
				return nil
			})
		},
	}

	getCmd := &cobra.Command{
		Use:   "get [PLAYLIST_ID]",
		Short: "Show a stored playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				playlist, err := lib.GetPlaylist(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to get playlist: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), playlist)
			})
		},
	}

	videosCmd := &cobra.Command{
		Use:   "videos [PLAYLIST_ID]",
		Short: "List the members of a playlist",
		Long: `List the members of a playlist.
Members that are not synced yet are shown by ID only.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sortBy, _ := cmd.Flags().GetString("sort")
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				entries, err := lib.GetPlaylistVideos(ctx, args[0], model.PlaylistSort(sortBy), limit)
				if err != nil {
					return fmt.Errorf("failed to list playlist videos: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), entries)
				}
				return writePlaylistEntries(cmd.OutOrStdout(), entries)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [PLAYLIST_ID]",
		Short: "Delete a playlist; its member videos are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				if err := lib.DeletePlaylist(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to delete playlist: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted playlist %s\n", args[0])
				return nil
			})
		},
	}

	videosCmd.Flags().String("sort", string(model.SortByPosition), "Sort by position, published_at or title")
	videosCmd.Flags().Int("limit", 0, "Maximum number of entries (0 for all)")
	videosCmd.Flags().Bool("json", false, "Print as JSON")

	cmd.AddCommand(listCmd, getCmd, videosCmd, deleteCmd)
	return cmd
}
