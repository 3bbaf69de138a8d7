package repository

import (
	"context"

	"github.com/Taichi-iskw/yt-library/internal/model"
)

// VideoRepository defines operations for Video persistence
type VideoRepository interface {
	// Upsert writes the video row, its tag set and its timestamp sequence in one transaction.
	// A nil tags or timestamps slice keeps the stored set; a non-nil slice replaces it.
	Upsert(ctx context.Context, video *model.Video, tags []string, timestamps []model.Timestamp) (*model.Video, error)

	// GetByID retrieves a video with its tags and timestamps
	GetByID(ctx context.Context, id string) (*model.Video, error)

	// GetByIDs retrieves the stored subset of ids; unknown IDs are skipped
	GetByIDs(ctx context.Context, ids []string) ([]*model.Video, error)

	// List returns one page ordered by last sync time, newest first
	List(ctx context.Context, page, perPage int) (*model.VideoPage, error)

	// ListByChannel returns the stored videos of a channel, newest published first
	ListByChannel(ctx context.Context, channelID string) ([]*model.Video, error)

	// ListDownloaded returns every video flagged as downloaded
	ListDownloaded(ctx context.Context) ([]*model.Video, error)

	// MarkDownloaded records a completed download at path
	MarkDownloaded(ctx context.Context, id, path string) error

	// SetStatus records whether the provider still serves the video; a successful Upsert resets it to available
	SetStatus(ctx context.Context, id string, status model.VideoStatus) error

	// ListTags returns every tag with its video count, ordered by name. limit <= 0 means all.
	ListTags(ctx context.Context, limit int) ([]*model.TagCount, error)

	// ListChannelTags returns the tags carried by at least minVideos videos of a channel, most used first
	ListChannelTags(ctx context.Context, channelID string, minVideos, limit int) ([]*model.TagCount, error)

	// ClearDownload resets the download state of a video
	ClearDownload(ctx context.Context, id string) error

	// Delete removes a video with its tags, timestamps, transcript and playlist memberships
	Delete(ctx context.Context, id string) error
}
