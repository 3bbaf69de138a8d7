package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/yt-library/internal/cache"
	"github.com/Taichi-iskw/yt-library/internal/config"
	"github.com/Taichi-iskw/yt-library/internal/logger"
	"github.com/Taichi-iskw/yt-library/internal/provider"
	"github.com/Taichi-iskw/yt-library/internal/repository"
	"github.com/Taichi-iskw/yt-library/internal/service/common"
	"github.com/Taichi-iskw/yt-library/internal/service/download"
	"github.com/Taichi-iskw/yt-library/internal/service/library"
	"github.com/Taichi-iskw/yt-library/internal/service/syncer"
	"github.com/Taichi-iskw/yt-library/internal/service/transcript"
)

// ServiceFactory wires the library from configuration
type ServiceFactory struct {
	LogLevel string
}

// NewServiceFactory creates a factory; an empty logLevel keeps the configured one
func NewServiceFactory(logLevel string) *ServiceFactory {
	return &ServiceFactory{LogLevel: logLevel}
}

// CreateLibrary connects PostgreSQL and, when configured, Redis and returns the
// library together with its cleanup function.
func (f *ServiceFactory) CreateLibrary(ctx context.Context) (library.Library, *logger.Logger, func(), error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if f.LogLevel != "" {
		level = f.LogLevel
	}
	log, err := logger.New(level)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	dbPool, err := config.NewDatabasePool(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := repository.NewStore(dbPool)

	var hot transcript.HotCache
	var redisClient *cache.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewClient(ctx, cfg.RedisURL, "ytlib", log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, transcripts are served from PostgreSQL only")
		} else {
			hot = cache.NewTranscriptCache(redisClient, cfg.TranscriptCacheTTL)
		}
	}

	ytdlp := provider.NewYtDlp(common.NewCmdRunner(), provider.Options{
		Binary:    cfg.YtDlpPath,
		Languages: cfg.TranscriptLanguages,
	}, log)

	locks := common.NewKeyedMutex()
	lib := library.New(
		store,
		syncer.NewSyncer(ytdlp, store, syncer.Options{ProviderTimeout: cfg.ProviderTimeout, Locks: locks}, log),
		transcript.NewService(ytdlp, store, hot, transcript.Options{Timeout: cfg.ProviderTimeout, Locks: locks}, log),
		download.NewService(ytdlp, store, download.Options{Root: cfg.DownloadRoot, Timeout: cfg.DownloadTimeout}, log),
		library.Options{RefreshAfter: cfg.RefreshAfter},
		log,
	)

	cleanup := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		config.CloseDatabasePool(dbPool)
		_ = log.Sync()
	}
	return lib, log, cleanup, nil
}

// withLibrary runs fn with lib, or with a library built from configuration when lib is nil
func withLibrary(cmd *cobra.Command, lib library.Library, fn func(ctx context.Context, lib library.Library) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if lib != nil {
		return fn(ctx, lib)
	}

	level, _ := cmd.Flags().GetString("log-level")
	created, _, cleanup, err := NewServiceFactory(level).CreateLibrary(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, created)
}
