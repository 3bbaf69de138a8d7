package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/model"
)

// mediaExtensions are the file types Scan considers
var mediaExtensions = map[string]bool{".mp4": true, ".mkv": true, ".webm": true}

// ScanMatch is a local file matched to a stored video
type ScanMatch struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Path        string `json:"path"`
	NeedsUpdate bool   `json:"needs_update"`
}

// ScanReport summarizes a library scan
type ScanReport struct {
	Files   int          `json:"files"`
	Matches []*ScanMatch `json:"matches"`
	Unknown []string     `json:"unknown"`
	Updated []string     `json:"updated"`
}

// Scan walks the channel directories under the root and records every media
// file that names a stored video of that channel, by video ID or by exact
// title. A match is recorded when the video is not flagged as downloaded or
// its recorded path differs. Directories not named "{name} [{channel ID}]",
// hidden entries and partial downloads are skipped.
func (s *service) Scan(ctx context.Context) (*ScanReport, error) {
	if s.root == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "download root is not configured")
	}

	report := &ScanReport{Matches: []*ScanMatch{}, Unknown: []string{}, Updated: []string{}}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return report, nil
		}
		return nil, apperrors.WrapPath(err, apperrors.CodeIO, "failed to read download root", s.root)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		_, channelID, ok := ParseChannelDir(entry.Name())
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, apperrors.Wrap(err, apperrors.CodeTransient, "scan interrupted")
		}
		if err := s.scanChannel(ctx, filepath.Join(s.root, entry.Name()), channelID, report); err != nil {
			return report, err
		}
	}

	for _, match := range report.Matches {
		if !match.NeedsUpdate {
			continue
		}
		if err := s.adopt(ctx, match); err != nil {
			return report, err
		}
		report.Updated = append(report.Updated, match.VideoID)
	}

	s.log.Info("library scan finished",
		zap.Int("files", report.Files),
		zap.Int("matches", len(report.Matches)),
		zap.Int("unknown", len(report.Unknown)),
		zap.Int("updated", len(report.Updated)))
	return report, nil
}

func (s *service) scanChannel(ctx context.Context, dir, channelID string, report *ScanReport) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return apperrors.WrapPath(err, apperrors.CodeIO, "failed to read channel directory", dir)
	}

	videos, err := s.videos.ListByChannel(ctx, channelID)
	if err != nil {
		return err
	}
	byKey := make(map[string]*model.Video, len(videos)*2)
	for _, v := range videos {
		byKey[v.Title] = v
		byKey[SanitizeName(v.Title, v.ID)] = v
	}
	// IDs win over titles
	for _, v := range videos {
		byKey[v.ID] = v
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || strings.HasPrefix(name, ".") || !mediaExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		report.Files++
		path := filepath.Join(dir, name)
		v, ok := byKey[strings.TrimSuffix(name, filepath.Ext(name))]
		if !ok {
			report.Unknown = append(report.Unknown, path)
			continue
		}
		report.Matches = append(report.Matches, &ScanMatch{
			VideoID:     v.ID,
			Title:       v.Title,
			Path:        path,
			NeedsUpdate: !v.Downloaded || v.FilePath == nil || filepath.Clean(*v.FilePath) != filepath.Clean(path),
		})
	}
	return nil
}

// adopt records a matched file under the video's download lock
func (s *service) adopt(ctx context.Context, match *ScanMatch) error {
	unlock, err := s.locks.Lock(ctx, match.VideoID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeTransient, "gave up waiting for running download of "+match.VideoID)
	}
	defer unlock()

	if err := s.videos.MarkDownloaded(ctx, match.VideoID, match.Path); err != nil {
		return err
	}
	s.log.Info("adopted local file", zap.String("video_id", match.VideoID), zap.String("path", match.Path))
	return nil
}
