package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-library/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration settings",
	Long:  `Manage configuration settings for ytlib.`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init [DATABASE_URL]",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default settings.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var databaseURL string
		if len(args) > 0 {
			databaseURL = args[0]
		}

		if err := config.InitConfig(databaseURL); err != nil {
			return err
		}

		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "Please edit the database_url in this file to match your PostgreSQL database.")
		return nil
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the configuration file path and the effective settings, including environment overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration file: %s\n\n", configPath)
		fmt.Fprintf(out, "DATABASE_URL:          %s\n", cfg.DatabaseURL)
		fmt.Fprintf(out, "REDIS_URL:             %s\n", orNone(cfg.RedisURL))
		fmt.Fprintf(out, "DOWNLOAD_ROOT:         %s\n", cfg.DownloadRoot)
		fmt.Fprintf(out, "YTDLP_PATH:            %s\n", cfg.YtDlpPath)
		fmt.Fprintf(out, "LOG_LEVEL:             %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "PROVIDER_TIMEOUT:      %s\n", cfg.ProviderTimeout)
		fmt.Fprintf(out, "DOWNLOAD_TIMEOUT:      %s\n", cfg.DownloadTimeout)
		fmt.Fprintf(out, "TRANSCRIPT_LANGUAGES:  %s\n", strings.Join(cfg.TranscriptLanguages, ","))
		fmt.Fprintf(out, "REFRESH_AFTER:         %s\n", cfg.RefreshAfter)
		fmt.Fprintf(out, "TRANSCRIPT_CACHE_TTL:  %s\n", cfg.TranscriptCacheTTL)
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
