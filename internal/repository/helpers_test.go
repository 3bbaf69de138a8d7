package repository

import (
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/Taichi-iskw/yt-library/internal/model"
)

var videoRowColumns = []string{
	"id", "channel_id", "title", "description", "published_at", "duration_seconds",
	"view_count", "like_count", "thumbnail_url", "status", "downloaded", "file_path", "downloaded_at",
	"last_synced_at", "tags", "timestamps",
}

var channelRowColumns = []string{
	"id", "name", "description", "subscriber_count", "video_count", "thumbnail_url",
	"banner_url", "content_breakdown", "placeholder", "last_synced_at",
}

var playlistRowColumns = []string{
	"id", "channel_id", "title", "description", "video_count", "last_synced_at", "video_ids",
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func addVideoRow(rows *pgxmock.Rows, v *model.Video) *pgxmock.Rows {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	status := v.Status
	if status == "" {
		status = model.VideoAvailable
	}
	timestamps := v.Timestamps
	if timestamps == nil {
		timestamps = []model.Timestamp{}
	}
	return rows.AddRow(
		v.ID, v.ChannelID, v.Title, v.Description, v.PublishedAt, v.DurationSeconds,
		v.ViewCount, v.LikeCount, v.ThumbnailURL, string(status), v.Downloaded, v.FilePath, v.DownloadedAt,
		v.LastSyncedAt, tags, timestamps,
	)
}

func sampleVideo(id string) *model.Video {
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.Video{
		ID:              id,
		ChannelID:       "UCuAXFkgsw1L7xaCfnd5JJOw",
		Title:           "Never Gonna Give You Up",
		Description:     strPtr("The official video"),
		PublishedAt:     &published,
		DurationSeconds: int64Ptr(212),
		ViewCount:       int64Ptr(1000),
		Status:          model.VideoAvailable,
		LastSyncedAt:    time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}
