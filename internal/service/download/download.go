// Package download stores video media under the library root and keeps the
// download flag of each video in step with the files on disk.
package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/logger"
	"github.com/Taichi-iskw/yt-library/internal/model"
	"github.com/Taichi-iskw/yt-library/internal/provider"
	"github.com/Taichi-iskw/yt-library/internal/repository"
	"github.com/Taichi-iskw/yt-library/internal/service/common"
)

// DefaultTimeout bounds a download when Options leaves it unset
const DefaultTimeout = 2 * time.Hour

// VerifyReport summarizes a library verification pass
type VerifyReport struct {
	Checked int      `json:"checked"`
	Cleared []string `json:"cleared"`
}

// Service defines operations for downloading videos
type Service interface {
	// Download fetches the media of a stored video and records its path
	Download(ctx context.Context, videoID string) (string, error)

	// Cancel stops an in-flight download of videoID and reports whether one was running
	Cancel(videoID string) bool

	// Verify clears the download flag of v when its file is gone
	Verify(ctx context.Context, v *model.Video) (*model.Video, error)

	// VerifyAll checks every video flagged as downloaded
	VerifyAll(ctx context.Context) (*VerifyReport, error)

	// Scan adopts media files under the root that belong to stored videos
	Scan(ctx context.Context) (*ScanReport, error)
}

// Options tunes a Service
type Options struct {
	Root    string
	Timeout time.Duration
}

// service implements Service
type service struct {
	provider provider.MetadataProvider
	channels repository.ChannelRepository
	videos   repository.VideoRepository
	root     string
	timeout  time.Duration
	locks    *common.KeyedMutex
	log      *logger.Logger

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc
}

// NewService creates a new download Service
func NewService(p provider.MetadataProvider, store *repository.Store, opts Options, log *logger.Logger) Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &service{
		provider: p,
		channels: store.Channels,
		videos:   store.Videos,
		root:     opts.Root,
		timeout:  opts.Timeout,
		locks:    common.NewKeyedMutex(),
		log:      log,
		inFlight: make(map[string]context.CancelFunc),
	}
}

// Download saves the video as {root}/{channel name} [{channel ID}]/{video ID}.{ext}
// and marks it downloaded. Downloads of the same video are serialized. A file
// recorded by an earlier download at another path is removed once the new one
// is recorded.
func (s *service) Download(ctx context.Context, videoID string) (string, error) {
	if videoID == "" {
		return "", apperrors.New(apperrors.CodeInvalidArg, "video ID is required")
	}
	if s.root == "" {
		return "", apperrors.New(apperrors.CodeInvalidArg, "download root is not configured")
	}

	unlock, err := s.locks.Lock(ctx, videoID)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTransient, "gave up waiting for running download of "+videoID)
	}
	defer unlock()

	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, s.channelDirName(ctx, video.ChannelID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.WrapPath(err, apperrors.CodeIO, "failed to create download directory", dir)
	}

	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	s.track(videoID, cancel)
	defer s.untrack(videoID)
	defer cancel()

	log := s.log.WithFields(map[string]interface{}{"video_id": videoID, "dir": dir})
	log.Info("download started")
	started := time.Now()

	path, err := s.provider.DownloadVideo(dctx, videoID, dir)
	if err != nil {
		switch {
		case errors.Is(dctx.Err(), context.Canceled) && ctx.Err() == nil:
			err = apperrors.Wrap(err, apperrors.CodeTransient, "download of "+videoID+" was cancelled")
		case errors.Is(dctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			err = apperrors.Wrap(err, apperrors.CodeTransient, "download did not finish within "+s.timeout.String())
		}
		log.Warn("download failed", zap.String("code", apperrors.CodeOf(err)), zap.Error(err))
		return "", err
	}

	if err := s.videos.MarkDownloaded(ctx, videoID, path); err != nil {
		// The file is on disk but unrecorded; verification or a retry reconciles it.
		log.Error("failed to record download", zap.String("path", path), zap.Error(err))
		return "", apperrors.WrapPath(err, apperrors.CodeStorage, "downloaded file could not be recorded", path)
	}

	if video.FilePath != nil && *video.FilePath != "" {
		s.removeReplaced(log, *video.FilePath, path)
	}

	log.Info("download finished", zap.String("path", path), zap.Duration("elapsed", time.Since(started)))
	return path, nil
}

// removeReplaced deletes the previous file of a video when it lives under the
// root at a path other than current
func (s *service) removeReplaced(log *logger.Logger, previous, current string) {
	if filepath.Clean(previous) == filepath.Clean(current) || !s.underRoot(previous) {
		return
	}
	err := os.Remove(previous)
	switch {
	case err == nil:
		log.Info("removed replaced download", zap.String("path", previous))
	case errors.Is(err, os.ErrNotExist):
	default:
		log.Warn("could not remove replaced download", zap.String("path", previous), zap.Error(err))
	}
}

func (s *service) underRoot(path string) bool {
	rel, err := filepath.Rel(filepath.Clean(s.root), filepath.Clean(path))
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// channelDirName names the directory of a channel "{name} [{ID}]"; an unknown
// channel is named by its ID
func (s *service) channelDirName(ctx context.Context, channelID string) string {
	name := channelID
	if channel, err := s.channels.GetByID(ctx, channelID); err == nil && channel.Name != "" {
		name = channel.Name
	}
	return ChannelDirName(name, channelID)
}

func (s *service) track(videoID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight[videoID] = cancel
}

func (s *service) untrack(videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, videoID)
}

// Cancel cancels the running download of videoID
func (s *service) Cancel(videoID string) bool {
	s.mu.Lock()
	cancel, ok := s.inFlight[videoID]
	s.mu.Unlock()
	if ok {
		cancel()
		s.log.Info("download cancelled", zap.String("video_id", videoID))
	}
	return ok
}

// Verify returns v, or a copy with the download state cleared when its file is missing
func (s *service) Verify(ctx context.Context, v *model.Video) (*model.Video, error) {
	if v == nil || !v.Downloaded {
		return v, nil
	}

	if v.FilePath != nil && *v.FilePath != "" {
		_, err := os.Stat(*v.FilePath)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("could not check downloaded file",
				zap.String("video_id", v.ID),
				zap.String("path", *v.FilePath),
				zap.Error(err))
			return v, nil
		}
	}

	if err := s.videos.ClearDownload(ctx, v.ID); err != nil {
		return nil, err
	}
	s.log.Info("cleared missing download", zap.String("video_id", v.ID))

	cleared := *v
	cleared.Downloaded = false
	cleared.FilePath = nil
	cleared.DownloadedAt = nil
	return &cleared, nil
}

// VerifyAll runs Verify over every downloaded video
func (s *service) VerifyAll(ctx context.Context) (*VerifyReport, error) {
	videos, err := s.videos.ListDownloaded(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{Cleared: []string{}}
	for _, v := range videos {
		if err := ctx.Err(); err != nil {
			return report, apperrors.Wrap(err, apperrors.CodeTransient, "verification interrupted")
		}
		checked, err := s.Verify(ctx, v)
		if err != nil {
			return report, err
		}
		report.Checked++
		if !checked.Downloaded {
			report.Cleared = append(report.Cleared, v.ID)
		}
	}
	return report, nil
}
