package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/service/library"
)

// NewVideoCommand creates the video command
func NewVideoCommand(lib library.Library) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Manage videos stored in the library",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored videos, most recently synced first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, _ := cmd.Flags().GetInt("page")
			perPage, _ := cmd.Flags().GetInt("per-page")
			asJSON, _ := cmd.Flags().GetBool("json")

			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				result, err := lib.ListVideos(ctx, page, perPage)
				if err != nil {
					return fmt.Errorf("failed to list videos: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), result)
				}
				out := cmd.OutOrStdout()
				if len(result.Items) == 0 {
					fmt.Fprintf(out, "No videos on page %d (%d videos, %d pages).\n", result.Page, result.TotalCount, result.TotalPages)
					return nil
				}
				if err := writeVideoTable(out, result.Items); err != nil {
					return err
				}
				fmt.Fprintf(out, "\nPage %d of %d (%d videos)\n", result.Page, result.TotalPages, result.TotalCount)
				return nil
			})
		},
	}

	getCmd := &cobra.Command{
		Use:   "get [VIDEO_ID]",
		Short: "Show a stored video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				video, err := lib.GetVideo(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to get video: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), video)
			})
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update [VIDEO_ID]",
		Short: "Refresh video metadata and transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				result, err := lib.UpdateVideo(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to update video: %w", err)
				}

				out := cmd.OutOrStdout()
				if result.VideoErr != nil {
					fmt.Fprintf(out, "Metadata: failed (%s)\n", result.VideoErr)
				} else {
					fmt.Fprintf(out, "Metadata: refreshed %q\n", result.Video.Title)
				}
				switch {
				case result.TranscriptErr == nil:
					fmt.Fprintf(out, "Transcript: refreshed (%d chapters)\n", len(result.Transcript.Chapters))
				case apperrors.IsNotFound(result.TranscriptErr):
					fmt.Fprintln(out, "Transcript: none available")
				default:
					fmt.Fprintf(out, "Transcript: failed (%s)\n", result.TranscriptErr)
				}

				if result.VideoErr != nil && result.TranscriptErr != nil && !apperrors.IsNotFound(result.TranscriptErr) {
					return fmt.Errorf("failed to update video %s", args[0])
				}
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [VIDEO_ID]",
		Short: "Delete a video with its tags, chapters and transcript",
		Long: `Delete a video with its tags, chapters, transcript and playlist memberships.
The channel and any downloaded file are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				if err := lib.DeleteVideo(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to delete video: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted video %s\n", args[0])
				return nil
			})
		},
	}

	downloadCmd := &cobra.Command{
		Use:   "download [VIDEO_ID]",
		Short: "Download a video into the library root",
		Long: `Download a video into {download_root}/{channel}/.
A video that is not in the library yet is synced first. Press Ctrl-C to cancel.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				path, err := lib.Download(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to download video: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded to %s\n", path)
				return nil
			})
		},
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Clear the download flag of videos whose file is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				report, err := lib.VerifyDownloads(ctx)
				if err != nil {
					return fmt.Errorf("failed to verify downloads: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Checked %d downloaded video(s), cleared %d\n", report.Checked, len(report.Cleared))
				for _, id := range report.Cleared {
					fmt.Fprintf(out, "  missing: %s\n", id)
				}
				return nil
			})
		},
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Adopt media files under the download root that belong to stored videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withLibrary(cmd, lib, func(ctx context.Context, lib library.Library) error {
				report, err := lib.ScanLibrary(ctx)
				if err != nil {
					return fmt.Errorf("failed to scan library: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scanned %d file(s): %d matched, %d unknown, %d record(s) updated\n",
					report.Files, len(report.Matches), len(report.Unknown), len(report.Updated))
				for _, id := range report.Updated {
					fmt.Fprintf(out, "  updated: %s\n", id)
				}
				for _, path := range report.Unknown {
					fmt.Fprintf(out, "  unknown: %s\n", path)
				}
				return nil
			})
		},
	}
	scanCmd.Flags().Bool("json", false, "Print as JSON")

	listCmd.Flags().Int("page", 1, "Page number, starting at 1")
	listCmd.Flags().Int("per-page", 20, "Videos per page")
	listCmd.Flags().Bool("json", false, "Print as JSON")

	cmd.AddCommand(listCmd, getCmd, updateCmd, deleteCmd, downloadCmd, verifyCmd, scanCmd)
	return cmd
}
