package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Taichi-iskw/yt-library/internal/api"
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the library over HTTP",
	Long: `Serve the library as a JSON API under /api.
Long-running downloads are not bound by the request timeout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		requestTimeout, _ := cmd.Flags().GetDuration("request-timeout")
		level, _ := cmd.Flags().GetString("log-level")

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		lib, log, cleanup, err := NewServiceFactory(level).CreateLibrary(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewRouter(lib, log, api.Options{RequestTimeout: requestTimeout}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("Listening", zap.String("addr", addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
		}

		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().Duration("request-timeout", api.DefaultRequestTimeout, "Timeout for non-download requests")
}
