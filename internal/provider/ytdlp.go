package provider

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/logger"
	"github.com/Taichi-iskw/yt-library/internal/model"
	"github.com/Taichi-iskw/yt-library/internal/resolver"
	"github.com/Taichi-iskw/yt-library/internal/service/common"
)

// YtDlp implements MetadataProvider by shelling out to yt-dlp
type YtDlp struct {
	cmdRunner common.CmdRunner
	binary    string
	languages []string
	log       *logger.Logger
}

// Options configures the yt-dlp provider
type Options struct {
	Binary    string   // defaults to "yt-dlp"
	Languages []string // transcript language priority, defaults to en, it
}

// NewYtDlp creates a yt-dlp backed provider
func NewYtDlp(cmdRunner common.CmdRunner, opts Options, log *logger.Logger) *YtDlp {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"en", "it"}
	}
	return &YtDlp{
		cmdRunner: cmdRunner,
		binary:    opts.Binary,
		languages: opts.Languages,
		log:       log,
	}
}

// ytDlpThumbnail is one entry of the thumbnails array
type ytDlpThumbnail struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ytDlpEntry is a flat playlist entry (a video, or a channel tab)
type ytDlpEntry struct {
	ID            string `json:"id"`
	Type          string `json:"_type"`
	Title         string `json:"title"`
	PlaylistCount *int64 `json:"playlist_count"`
}

// ytDlpChannelInfo represents yt-dlp JSON output structure for channel info
type ytDlpChannelInfo struct {
	ID                   string           `json:"id"`
	ChannelID            string           `json:"channel_id"`
	Channel              string           `json:"channel"`
	Title                string           `json:"title"`
	Uploader             string           `json:"uploader"`
	Description          *string          `json:"description"`
	ChannelFollowerCount *int64           `json:"channel_follower_count"`
	PlaylistCount        *int64           `json:"playlist_count"`
	Thumbnails           []ytDlpThumbnail `json:"thumbnails"`
	Entries              []ytDlpEntry     `json:"entries"`
}

// ytDlpChapter represents a chapter in yt-dlp video output
type ytDlpChapter struct {
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
	Title     string   `json:"title"`
}

// ytDlpVideoInfo represents yt-dlp JSON output structure for video info
type ytDlpVideoInfo struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description *string        `json:"description"`
	ChannelID   string         `json:"channel_id"`
	Channel     string         `json:"channel"`
	Uploader    string         `json:"uploader"`
	UploadDate  string         `json:"upload_date"`
	Timestamp   *int64         `json:"timestamp"`
	Duration    *float64       `json:"duration"`
	ViewCount   *int64         `json:"view_count"`
	LikeCount   *int64         `json:"like_count"`
	Thumbnail   *string        `json:"thumbnail"`
	Tags        []string       `json:"tags"`
	Chapters    []ytDlpChapter `json:"chapters"`
}

// ytDlpPlaylistInfo represents yt-dlp JSON output structure for playlist info
type ytDlpPlaylistInfo struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   *string      `json:"description"`
	ChannelID     string       `json:"channel_id"`
	Channel       string       `json:"channel"`
	Uploader      string       `json:"uploader"`
	PlaylistCount *int64       `json:"playlist_count"`
	Entries       []ytDlpEntry `json:"entries"`
}

// FetchChannel fetches channel metadata. id may be a canonical ID or a handle form.
func (p *YtDlp) FetchChannel(ctx context.Context, id string) (*ChannelPayload, error) {
	if id == "" {
		return nil, errors.New(errors.CodeInvalidArg, "channel ID is required")
	}

	args := []string{
		"--dump-single-json",
		"--flat-playlist",
		"--no-warnings",
		resolver.ChannelURL(id),
	}

	output, err := p.cmdRunner.Run(ctx, p.binary, args...)
	if err != nil {
		return nil, classifyError(err, "failed to fetch channel "+id)
	}

	var info ytDlpChannelInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, errors.Wrap(err, errors.CodeTransient, "failed to parse yt-dlp channel output")
	}

	channelID := info.ChannelID
	if channelID == "" {
		channelID = info.ID
	}
	if channelID == "" {
		return nil, errors.New(errors.CodeNotFound, "yt-dlp returned no channel ID for "+id)
	}

	channel := model.Channel{
		ID:               channelID,
		Name:             firstNonEmpty(info.Channel, info.Uploader, info.Title, channelID),
		Description:      info.Description,
		SubscriberCount:  info.ChannelFollowerCount,
		ContentBreakdown: contentBreakdown(info),
	}
	for _, thumb := range info.Thumbnails {
		url := thumb.URL
		switch thumb.ID {
		case "avatar_uncropped":
			channel.ThumbnailURL = &url
		case "banner_uncropped":
			channel.BannerURL = &url
		}
	}
	if total := sumBreakdown(channel.ContentBreakdown); total > 0 {
		channel.VideoCount = &total
	}

	return &ChannelPayload{Channel: channel}, nil
}

// contentBreakdown counts channel content per tab. A channel page lists its
// tabs as nested playlists ("Name - Videos", "Name - Shorts", "Name - Live");
// a single-tab channel lists videos directly.
func contentBreakdown(info ytDlpChannelInfo) map[string]int64 {
	if len(info.Entries) == 0 {
		return nil
	}

	breakdown := map[string]int64{}
	for _, entry := range info.Entries {
		tab := channelTab(entry.Title)
		if tab == "" && entry.Type != "playlist" {
			breakdown["Videos"]++
			continue
		}
		if tab == "" {
			tab = "Other"
		}
		if entry.PlaylistCount != nil {
			breakdown[tab] += *entry.PlaylistCount
		} else if _, ok := breakdown[tab]; !ok {
			breakdown[tab] = 0
		}
	}
	return breakdown
}

func channelTab(title string) string {
	for _, tab := range []string{"Videos", "Shorts", "Live"} {
		if title == tab || strings.HasSuffix(title, " - "+tab) {
			return tab
		}
	}
	return ""
}

func sumBreakdown(breakdown map[string]int64) int64 {
	var total int64
	for _, n := range breakdown {
		total += n
	}
	return total
}

// FetchVideo fetches full video metadata including tags and chapters
func (p *YtDlp) FetchVideo(ctx context.Context, id string) (*VideoPayload, error) {
	if id == "" {
		return nil, errors.New(errors.CodeInvalidArg, "video ID is required")
	}

	args := []string{
		"--dump-json",
		"--no-playlist",
		"--skip-download",
		"--no-warnings",
		resolver.VideoURL(id),
	}

	output, err := p.cmdRunner.Run(ctx, p.binary, args...)
	if err != nil {
		return nil, classifyError(err, "failed to fetch video "+id)
	}

	var info ytDlpVideoInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, errors.Wrap(err, errors.CodeTransient, "failed to parse yt-dlp video output")
	}
	if info.ChannelID == "" {
		return nil, errors.New(errors.CodeTransient, "yt-dlp returned no channel for video "+id)
	}

	video := model.Video{
		ID:           firstNonEmpty(info.ID, id),
		ChannelID:    info.ChannelID,
		Title:        info.Title,
		Description:  info.Description,
		PublishedAt:  publishedAt(info.Timestamp, info.UploadDate),
		ViewCount:    info.ViewCount,
		LikeCount:    info.LikeCount,
		ThumbnailURL: info.Thumbnail,
	}
	if info.Duration != nil {
		d := int64(*info.Duration + 0.5)
		video.DurationSeconds = &d
	}

	tags := info.Tags
	if tags == nil {
		tags = []string{}
	}
	chapters := make([]model.Timestamp, 0, len(info.Chapters))
	for _, ch := range info.Chapters {
		title := ch.Title
		if title == "" {
			title = "Untitled Chapter"
		}
		chapters = append(chapters, model.Timestamp{StartSeconds: ch.StartTime, Title: title})
	}

	return &VideoPayload{
		Video:       video,
		ChannelName: firstNonEmpty(info.Channel, info.Uploader),
		Tags:        tags,
		Chapters:    chapters,
	}, nil
}

// publishedAt prefers the exact upload timestamp and falls back to the YYYYMMDD date
func publishedAt(ts *int64, uploadDate string) *time.Time {
	if ts != nil {
		t := time.Unix(*ts, 0).UTC()
		return &t
	}
	if uploadDate != "" {
		if t, err := time.Parse("20060102", uploadDate); err == nil {
			return &t
		}
	}
	return nil
}

// FetchPlaylist fetches playlist metadata and its ordered member IDs
func (p *YtDlp) FetchPlaylist(ctx context.Context, id string) (*PlaylistPayload, error) {
	if id == "" {
		return nil, errors.New(errors.CodeInvalidArg, "playlist ID is required")
	}

	args := []string{
		"--dump-single-json",
		"--flat-playlist",
		"--no-warnings",
		resolver.PlaylistURL(id),
	}

	output, err := p.cmdRunner.Run(ctx, p.binary, args...)
	if err != nil {
		return nil, classifyError(err, "failed to fetch playlist "+id)
	}

	var info ytDlpPlaylistInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, errors.Wrap(err, errors.CodeTransient, "failed to parse yt-dlp playlist output")
	}

	members := make([]string, 0, len(info.Entries))
	seen := map[string]bool{}
	for _, entry := range info.Entries {
		if entry.ID == "" || seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true
		members = append(members, entry.ID)
	}

	playlist := model.Playlist{
		ID:          firstNonEmpty(info.ID, id),
		Title:       firstNonEmpty(info.Title, "Unnamed Playlist"),
		Description: info.Description,
		VideoCount:  info.PlaylistCount,
	}
	if info.ChannelID != "" {
		channelID := info.ChannelID
		playlist.ChannelID = &channelID
	}

	return &PlaylistPayload{
		Playlist:    playlist,
		ChannelName: firstNonEmpty(info.Channel, info.Uploader),
		MemberIDs:   members,
	}, nil
}

// DownloadVideo downloads a video into destDir, overwriting a previous copy,
// and returns the final file path reported by yt-dlp.
func (p *YtDlp) DownloadVideo(ctx context.Context, id, destDir string) (string, error) {
	if id == "" {
		return "", errors.New(errors.CodeInvalidArg, "video ID is required")
	}

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--force-overwrites",
		"--no-simulate",
		"--windows-filenames",
		"-f", "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
		resolver.VideoURL(id),
	}

	p.log.WithFields(map[string]interface{}{"video_id": id, "dest_dir": destDir}).Debug("starting yt-dlp download")

	output, err := p.cmdRunner.Run(ctx, p.binary, args...)
	if err != nil {
		return "", classifyError(err, "failed to download video "+id)
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && strings.Contains(line, string(os.PathSeparator)) {
			return line, nil
		}
	}
	return "", errors.WrapPath(nil, errors.CodeIO, "yt-dlp did not report the downloaded file", destDir)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
