package model

import "time"

// EntityKind identifies what a canonical ID refers to
type EntityKind string

const (
	KindChannel  EntityKind = "channel"
	KindVideo    EntityKind = "video"
	KindPlaylist EntityKind = "playlist"
)

// Key scopes id to the entity kind, e.g. "video:dQw4w9WgXcQ"
func (k EntityKind) Key(id string) string {
	return string(k) + ":" + id
}

// VideoStatus tells whether the provider still serves a stored video
type VideoStatus string

const (
	VideoAvailable   VideoStatus = "available"
	VideoUnavailable VideoStatus = "unavailable"
)

// Channel represents YouTube channel information.
// Pointer fields are nil when unknown; an upsert with a nil field keeps the stored value.
type Channel struct {
	ID               string           `json:"id" db:"id"`
	Name             string           `json:"name" db:"name"`
	Description      *string          `json:"description,omitempty" db:"description"`
	SubscriberCount  *int64           `json:"subscriber_count,omitempty" db:"subscriber_count"`
	VideoCount       *int64           `json:"video_count,omitempty" db:"video_count"`
	ThumbnailURL     *string          `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	BannerURL        *string          `json:"banner_url,omitempty" db:"banner_url"`
	ContentBreakdown map[string]int64 `json:"content_breakdown,omitempty" db:"content_breakdown"`
	Placeholder      bool             `json:"placeholder" db:"placeholder"`
	LastSyncedAt     time.Time        `json:"last_synced_at" db:"last_synced_at"`
}

// Video represents YouTube video information
type Video struct {
	ID              string      `json:"id" db:"id"`
	ChannelID       string      `json:"channel_id" db:"channel_id"`
	Title           string      `json:"title" db:"title"`
	Description     *string     `json:"description,omitempty" db:"description"`
	PublishedAt     *time.Time  `json:"published_at,omitempty" db:"published_at"`
	DurationSeconds *int64      `json:"duration_seconds,omitempty" db:"duration_seconds"`
	ViewCount       *int64      `json:"view_count,omitempty" db:"view_count"`
	LikeCount       *int64      `json:"like_count,omitempty" db:"like_count"`
	ThumbnailURL    *string     `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	Status          VideoStatus `json:"status" db:"status"`
	Downloaded      bool        `json:"downloaded" db:"downloaded"`
	FilePath        *string     `json:"file_path,omitempty" db:"file_path"`
	DownloadedAt    *time.Time  `json:"downloaded_at,omitempty" db:"downloaded_at"`
	LastSyncedAt    time.Time   `json:"last_synced_at" db:"last_synced_at"`

	// Populated by detail reads only
	Tags       []string    `json:"tags,omitempty"`
	Timestamps []Timestamp `json:"timestamps,omitempty"`
}

// Timestamp is a chapter boundary inside a video
type Timestamp struct {
	StartSeconds float64 `json:"start_seconds" db:"start_seconds"`
	Title        string  `json:"title" db:"title"`
	Text         *string `json:"text,omitempty" db:"text"` // transcript excerpt for the chapter
}

// TranscriptStatus is the cached outcome of a transcript fetch
type TranscriptStatus string

const (
	TranscriptAvailable TranscriptStatus = "available"
	TranscriptNotFound  TranscriptStatus = "not_found"
)

// Transcript is the cached transcript of a video
type Transcript struct {
	VideoID   string           `json:"video_id" db:"video_id"`
	Status    TranscriptStatus `json:"status" db:"status"`
	Language  string           `json:"language,omitempty" db:"language"`
	PlainText string           `json:"plain_text" db:"plain_text"`
	Chapters  []Timestamp      `json:"chapters"`
	FetchedAt time.Time        `json:"fetched_at" db:"fetched_at"`
}

// Playlist represents a YouTube playlist and its ordered membership
type Playlist struct {
	ID           string    `json:"id" db:"id"`
	ChannelID    *string   `json:"channel_id,omitempty" db:"channel_id"`
	Title        string    `json:"title" db:"title"`
	Description  *string   `json:"description,omitempty" db:"description"`
	VideoCount   *int64    `json:"video_count,omitempty" db:"video_count"`
	LastSyncedAt time.Time `json:"last_synced_at" db:"last_synced_at"`

	VideoIDs []string `json:"video_ids,omitempty"`
}

// PlaylistEntry is one member of a playlist; Video is nil until the member is synced
type PlaylistEntry struct {
	Position int    `json:"position"`
	VideoID  string `json:"video_id"`
	Video    *Video `json:"video,omitempty"`
}

// VideoPage is one page of the video listing
type VideoPage struct {
	Items      []*Video `json:"items"`
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	TotalCount int      `json:"total_count"`
	TotalPages int      `json:"total_pages"`
}

// TagCount is a tag with the number of videos carrying it
type TagCount struct {
	Name       string `json:"name" db:"name"`
	VideoCount int64  `json:"video_count" db:"video_count"`
}

// ChannelDetail is a channel together with the videos stored for it
type ChannelDetail struct {
	Channel *Channel `json:"channel"`
	Videos  []*Video `json:"videos"`
}

// PlaylistSort selects the ordering of playlist members
type PlaylistSort string

const (
	SortByPosition    PlaylistSort = "position"
	SortByPublishedAt PlaylistSort = "published_at"
	SortByTitle       PlaylistSort = "title"
)
