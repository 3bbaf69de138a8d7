// Package library is the entry point used by the CLI and the HTTP API.
// It resolves submitted URLs, decides whether a stored entity needs a fresh
// sync, and composes the sync, transcript and download services.
package library

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/logger"
	"github.com/Taichi-iskw/yt-library/internal/model"
	"github.com/Taichi-iskw/yt-library/internal/repository"
	"github.com/Taichi-iskw/yt-library/internal/resolver"
	"github.com/Taichi-iskw/yt-library/internal/service/download"
	"github.com/Taichi-iskw/yt-library/internal/service/syncer"
	"github.com/Taichi-iskw/yt-library/internal/service/transcript"
)

// DefaultRefreshAfter is how long a synced entity counts as fresh
const DefaultRefreshAfter = 30 * 24 * time.Hour

// Action tells what ProcessURL did with the entity
type Action string

const (
	ActionCached  Action = "cached"
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Summary describes the entity handled by ProcessURL
type Summary struct {
	Kind   model.EntityKind `json:"kind"`
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	Action Action           `json:"action"`
	Entity interface{}      `json:"entity"`
}

// UpdateResult carries the independent outcomes of UpdateVideo.
// Either half may fail while the other succeeds.
type UpdateResult struct {
	Video         *model.Video      `json:"video,omitempty"`
	VideoErr      error             `json:"-"`
	Transcript    *model.Transcript `json:"transcript,omitempty"`
	TranscriptErr error             `json:"-"`
}

// OK reports whether both halves succeeded
func (r *UpdateResult) OK() bool {
	return r.VideoErr == nil && r.TranscriptErr == nil
}

// Answerer answers questions about a video using its transcript as context.
// Conversation state is keyed by sessionID and kept by the implementation.
type Answerer interface {
	Answer(ctx context.Context, videoID, sessionID, query, transcript string) (string, error)
}

// Answer is the reply of Ask
type Answer struct {
	VideoID   string `json:"video_id"`
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

// Library defines the operations exposed to the presentation layer
type Library interface {
	ProcessURL(ctx context.Context, rawURL string, force bool) (*Summary, error)
	UpdateVideo(ctx context.Context, id string) (*UpdateResult, error)
	DeleteVideo(ctx context.Context, id string) error

	ListVideos(ctx context.Context, page, perPage int) (*model.VideoPage, error)
	GetVideo(ctx context.Context, id string) (*model.Video, error)
	GetChannel(ctx context.Context, id string) (*model.ChannelDetail, error)
	ListChannels(ctx context.Context) ([]*model.Channel, error)
	ListTags(ctx context.Context, limit int) ([]*model.TagCount, error)
	ListChannelTags(ctx context.Context, channelID string, minVideos, limit int) ([]*model.TagCount, error)

	ListPlaylists(ctx context.Context) ([]*model.Playlist, error)
	GetPlaylist(ctx context.Context, id string) (*model.Playlist, error)
	GetPlaylistVideos(ctx context.Context, id string, sortBy model.PlaylistSort, limit int) ([]*model.PlaylistEntry, error)
	DeletePlaylist(ctx context.Context, id string) error

	GetTranscript(ctx context.Context, id string, forceRefresh bool) (*model.Transcript, error)
	Ask(ctx context.Context, videoID, sessionID, query string) (*Answer, error)

	Download(ctx context.Context, id string) (string, error)
	CancelDownload(id string) bool
	VerifyDownloads(ctx context.Context) (*download.VerifyReport, error)
	ScanLibrary(ctx context.Context) (*download.ScanReport, error)
}

// Options tunes a Library
type Options struct {
	RefreshAfter time.Duration
	Answerer     Answerer
	Now          func() time.Time
}

// library implements Library
type library struct {
	store       *repository.Store
	syncer      syncer.Syncer
	transcripts transcript.Service
	downloads   download.Service
	answerer    Answerer
	refresh     time.Duration
	now         func() time.Time
	log         *logger.Logger
}

// New creates a Library over the given services
func New(store *repository.Store, s syncer.Syncer, transcripts transcript.Service, downloads download.Service, opts Options, log *logger.Logger) Library {
	if opts.RefreshAfter <= 0 {
		opts.RefreshAfter = DefaultRefreshAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &library{
		store:       store,
		syncer:      s,
		transcripts: transcripts,
		downloads:   downloads,
		answerer:    opts.Answerer,
		refresh:     opts.RefreshAfter,
		now:         opts.Now,
		log:         log,
	}
}

func (l *library) fresh(lastSynced time.Time) bool {
	return l.now().Sub(lastSynced) < l.refresh
}

// lookup runs get and converts NOT_FOUND into a nil result
func lookup[T any](get func() (*T, error)) (*T, error) {
	v, err := get()
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	return v, err
}

func actionFor(existed bool) Action {
	if existed {
		return ActionUpdated
	}
	return ActionCreated
}

// ProcessURL resolves rawURL and brings the entity it names up to date.
// A fresh stored entity is returned as is unless force is set.
func (l *library) ProcessURL(ctx context.Context, rawURL string, force bool) (*Summary, error) {
	target, err := resolver.Resolve(rawURL)
	if err != nil {
		return nil, err
	}

	var summary *Summary
	switch target.Kind {
	case model.KindChannel:
		summary, err = l.processChannel(ctx, target, force)
	case model.KindVideo:
		summary, err = l.processVideo(ctx, target.ID, force)
	case model.KindPlaylist:
		summary, err = l.processPlaylist(ctx, target.ID, force)
	default:
		err = apperrors.New(apperrors.CodeParse, "unsupported URL kind: "+string(target.Kind))
	}
	if err != nil {
		return nil, err
	}

	l.log.Info("processed url",
		zap.String("entity_kind", string(summary.Kind)),
		zap.String("id", summary.ID),
		zap.String("action", string(summary.Action)))
	return summary, nil
}

func (l *library) processChannel(ctx context.Context, target resolver.Target, force bool) (*Summary, error) {
	summarize := func(c *model.Channel, action Action) *Summary {
		return &Summary{Kind: model.KindChannel, ID: c.ID, Title: c.Name, Action: action, Entity: c}
	}

	if !target.IsCanonical() {
		// A handle only becomes an ID after asking the provider.
		payload, err := l.syncer.FetchChannel(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		existing, err := lookup(func() (*model.Channel, error) {
			return l.store.Channels.GetByID(ctx, payload.Channel.ID)
		})
		if err != nil {
			return nil, err
		}
		if existing != nil && !existing.Placeholder && !force && l.fresh(existing.LastSyncedAt) {
			return summarize(existing, ActionCached), nil
		}
		stored, err := l.syncer.MergeChannel(ctx, payload)
		if err != nil {
			return nil, err
		}
		return summarize(stored, actionFor(existing != nil)), nil
	}

	existing, err := lookup(func() (*model.Channel, error) {
		return l.store.Channels.GetByID(ctx, target.ID)
	})
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.Placeholder && !force && l.fresh(existing.LastSyncedAt) {
		return summarize(existing, ActionCached), nil
	}
	stored, err := l.syncer.SyncChannel(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	return summarize(stored, actionFor(existing != nil)), nil
}

func (l *library) processVideo(ctx context.Context, id string, force bool) (*Summary, error) {
	summarize := func(v *model.Video, action Action) *Summary {
		return &Summary{Kind: model.KindVideo, ID: v.ID, Title: v.Title, Action: action, Entity: v}
	}

	existing, err := lookup(func() (*model.Video, error) { return l.store.Videos.GetByID(ctx, id) })
	if err != nil {
		return nil, err
	}
	if existing != nil && !force && l.fresh(existing.LastSyncedAt) {
		return summarize(existing, ActionCached), nil
	}
	stored, err := l.syncVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	return summarize(stored, actionFor(existing != nil)), nil
}

// syncVideo syncs a video and drops its hot transcript entry, which embeds the
// chapters the sync may have replaced
func (l *library) syncVideo(ctx context.Context, id string) (*model.Video, error) {
	video, err := l.syncer.SyncVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	l.transcripts.Invalidate(ctx, id)
	return video, nil
}

func (l *library) processPlaylist(ctx context.Context, id string, force bool) (*Summary, error) {
	summarize := func(p *model.Playlist, action Action) *Summary {
		return &Summary{Kind: model.KindPlaylist, ID: p.ID, Title: p.Title, Action: action, Entity: p}
	}

	existing, err := lookup(func() (*model.Playlist, error) { return l.store.Playlists.GetByID(ctx, id) })
	if err != nil {
		return nil, err
	}
	if existing != nil && !force && l.fresh(existing.LastSyncedAt) {
		return summarize(existing, ActionCached), nil
	}
	stored, err := l.syncer.SyncPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	return summarize(stored, actionFor(existing != nil)), nil
}

// UpdateVideo re-syncs the video metadata and then force-refreshes its transcript.
// The transcript refresh runs even when the metadata sync failed.
func (l *library) UpdateVideo(ctx context.Context, id string) (*UpdateResult, error) {
	if id == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "video ID is required")
	}

	result := &UpdateResult{}
	result.Video, result.VideoErr = l.syncVideo(ctx, id)
	result.Transcript, result.TranscriptErr = l.transcripts.GetTranscript(ctx, id, true)

	if !result.OK() {
		l.log.Warn("video update incomplete",
			zap.String("video_id", id),
			zap.String("video_code", apperrors.CodeOf(result.VideoErr)),
			zap.String("transcript_code", apperrors.CodeOf(result.TranscriptErr)))
	}
	return result, nil
}

// DeleteVideo removes the video and everything it owns. A downloaded file stays on disk.
func (l *library) DeleteVideo(ctx context.Context, id string) error {
	if err := l.store.Videos.Delete(ctx, id); err != nil {
		return err
	}
	l.transcripts.Invalidate(ctx, id)
	l.log.Info("deleted video", zap.String("video_id", id))
	return nil
}

func (l *library) ListVideos(ctx context.Context, page, perPage int) (*model.VideoPage, error) {
	return l.store.Videos.List(ctx, page, perPage)
}

// GetVideo returns a stored video after checking that its downloaded file still exists
func (l *library) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	video, err := l.store.Videos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.downloads.Verify(ctx, video)
}

func (l *library) GetChannel(ctx context.Context, id string) (*model.ChannelDetail, error) {
	channel, err := l.store.Channels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	videos, err := l.store.Videos.ListByChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.ChannelDetail{Channel: channel, Videos: videos}, nil
}

func (l *library) ListChannels(ctx context.Context) ([]*model.Channel, error) {
	return l.store.Channels.List(ctx)
}

func (l *library) ListTags(ctx context.Context, limit int) ([]*model.TagCount, error) {
	return l.store.Videos.ListTags(ctx, limit)
}

// ListChannelTags returns the most used tags of a stored channel
func (l *library) ListChannelTags(ctx context.Context, channelID string, minVideos, limit int) ([]*model.TagCount, error) {
	if _, err := l.store.Channels.GetByID(ctx, channelID); err != nil {
		return nil, err
	}
	return l.store.Videos.ListChannelTags(ctx, channelID, minVideos, limit)
}

func (l *library) ListPlaylists(ctx context.Context) ([]*model.Playlist, error) {
	return l.store.Playlists.List(ctx)
}

func (l *library) GetPlaylist(ctx context.Context, id string) (*model.Playlist, error) {
	return l.store.Playlists.GetByID(ctx, id)
}

func (l *library) GetPlaylistVideos(ctx context.Context, id string, sortBy model.PlaylistSort, limit int) ([]*model.PlaylistEntry, error) {
	if _, err := l.store.Playlists.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return l.store.Playlists.ListEntries(ctx, id, sortBy, limit)
}

func (l *library) DeletePlaylist(ctx context.Context, id string) error {
	if err := l.store.Playlists.Delete(ctx, id); err != nil {
		return err
	}
	l.log.Info("deleted playlist", zap.String("playlist_id", id))
	return nil
}

func (l *library) GetTranscript(ctx context.Context, id string, forceRefresh bool) (*model.Transcript, error) {
	return l.transcripts.GetTranscript(ctx, id, forceRefresh)
}

// Ask hands the cached transcript to the Answerer. It never fetches a transcript.
func (l *library) Ask(ctx context.Context, videoID, sessionID, query string) (*Answer, error) {
	if l.answerer == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "no answerer is configured")
	}
	if query == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "query is required")
	}

	t, err := l.transcripts.Cached(ctx, videoID)
	if err != nil {
		return nil, err
	}

	answer, err := l.answerer.Answer(ctx, videoID, sessionID, query, t.PlainText)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransient, "answerer failed")
	}
	return &Answer{VideoID: videoID, SessionID: sessionID, Answer: answer}, nil
}

// Download stores the media of a video, syncing the video first when it is unknown
func (l *library) Download(ctx context.Context, id string) (string, error) {
	existing, err := lookup(func() (*model.Video, error) { return l.store.Videos.GetByID(ctx, id) })
	if err != nil {
		return "", err
	}
	if existing == nil {
		if _, err := l.syncVideo(ctx, id); err != nil {
			return "", err
		}
	}
	return l.downloads.Download(ctx, id)
}

func (l *library) CancelDownload(id string) bool {
	return l.downloads.Cancel(id)
}

func (l *library) VerifyDownloads(ctx context.Context) (*download.VerifyReport, error) {
	return l.downloads.VerifyAll(ctx)
}

func (l *library) ScanLibrary(ctx context.Context) (*download.ScanReport, error) {
	return l.downloads.Scan(ctx)
}
