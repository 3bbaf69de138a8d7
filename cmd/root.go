// Package cmd implements the ytlib command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-library/internal/config"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ytlib",
	Short: "Local YouTube library",
	Long: `ytlib keeps a local library of YouTube channels, videos and playlists.
Submitted URLs are resolved, synced into PostgreSQL and can be downloaded
or read back together with their transcripts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(".env")
	},
}

// Execute runs the root command; Ctrl-C cancels the running operation
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")

	rootCmd.AddCommand(NewProcessCommand(nil))
	rootCmd.AddCommand(NewChannelCommand(nil))
	rootCmd.AddCommand(NewVideoCommand(nil))
	rootCmd.AddCommand(NewPlaylistCommand(nil))
	rootCmd.AddCommand(NewTranscriptCommand(nil))
	rootCmd.AddCommand(NewTagCommand(nil))
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
}
