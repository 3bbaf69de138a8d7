// Package provider defines the metadata extraction capability and its yt-dlp implementation.
package provider

import (
	"context"

	"github.com/Taichi-iskw/yt-library/internal/model"
)

// MetadataProvider fetches raw metadata, transcripts and media from YouTube.
// Failures are NOT_FOUND when the entity does not exist upstream and
// TRANSIENT_ERROR when a retry may succeed.
type MetadataProvider interface {
	FetchChannel(ctx context.Context, id string) (*ChannelPayload, error)
	FetchVideo(ctx context.Context, id string) (*VideoPayload, error)
	FetchPlaylist(ctx context.Context, id string) (*PlaylistPayload, error)
	FetchTranscript(ctx context.Context, id string) (*TranscriptPayload, error)
	DownloadVideo(ctx context.Context, id, destDir string) (string, error)
}

// ChannelPayload is a freshly fetched channel. Channel.ID is canonical.
type ChannelPayload struct {
	Channel model.Channel
}

// VideoPayload is a freshly fetched video with its tags and chapters.
// A nil Tags or Chapters slice means the field was not supplied.
type VideoPayload struct {
	Video       model.Video
	ChannelName string
	Tags        []string
	Chapters    []model.Timestamp
}

// PlaylistPayload is a freshly fetched playlist with ordered member IDs
type PlaylistPayload struct {
	Playlist    model.Playlist
	ChannelName string
	MemberIDs   []string
}

// Cue is one caption interval
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// ChapterSpan is a chapter boundary reported alongside a transcript
type ChapterSpan struct {
	Start float64
	End   *float64
	Title string
}

// TranscriptPayload is the normalized transcript of a video
type TranscriptPayload struct {
	Language  string
	PlainText string
	Cues      []Cue
	Chapters  []ChapterSpan
}
