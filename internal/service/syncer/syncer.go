// Package syncer brings one channel, video or playlist to a fresh stored state.
//
// Every sync runs Resolved -> Fetching -> Merging -> Done. Fetching talks to the
// provider under a timeout and performs no writes; Merging writes the fetched
// payload under a per-entity lock. Either stage can be retried on its own.
package syncer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/logger"
	"github.com/Taichi-iskw/yt-library/internal/model"
	"github.com/Taichi-iskw/yt-library/internal/provider"
	"github.com/Taichi-iskw/yt-library/internal/repository"
	"github.com/Taichi-iskw/yt-library/internal/service/common"
)

// Stage is a step of the sync state machine
type Stage string

const (
	StageResolved Stage = "resolved"
	StageFetching Stage = "fetching"
	StageMerging  Stage = "merging"
	StageDone     Stage = "done"
)

// DefaultProviderTimeout bounds a single provider call when Options leaves it unset
const DefaultProviderTimeout = 60 * time.Second

// Syncer is interface for the sync orchestrators
type Syncer interface {
	SyncChannel(ctx context.Context, id string) (*model.Channel, error)
	SyncVideo(ctx context.Context, id string) (*model.Video, error)
	SyncPlaylist(ctx context.Context, id string) (*model.Playlist, error)

	FetchChannel(ctx context.Context, id string) (*provider.ChannelPayload, error)
	MergeChannel(ctx context.Context, payload *provider.ChannelPayload) (*model.Channel, error)
	FetchVideo(ctx context.Context, id string) (*provider.VideoPayload, error)
	MergeVideo(ctx context.Context, payload *provider.VideoPayload) (*model.Video, error)
	FetchPlaylist(ctx context.Context, id string) (*provider.PlaylistPayload, error)
	MergePlaylist(ctx context.Context, payload *provider.PlaylistPayload) (*model.Playlist, error)
}

// Options tunes a Syncer
type Options struct {
	ProviderTimeout time.Duration
	// Locks serializes writes per entity key. Share it with other writers of
	// the same rows; nil gives the Syncer its own.
	Locks *common.KeyedMutex
}

// syncer implements Syncer
type syncer struct {
	provider  provider.MetadataProvider
	channels  repository.ChannelRepository
	videos    repository.VideoRepository
	playlists repository.PlaylistRepository
	locks     *common.KeyedMutex
	timeout   time.Duration
	log       *logger.Logger
}

// NewSyncer creates a new Syncer
func NewSyncer(p provider.MetadataProvider, store *repository.Store, opts Options, log *logger.Logger) Syncer {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = DefaultProviderTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	if opts.Locks == nil {
		opts.Locks = common.NewKeyedMutex()
	}
	return &syncer{
		provider:  p,
		channels:  store.Channels,
		videos:    store.Videos,
		playlists: store.Playlists,
		locks:     opts.Locks,
		timeout:   opts.ProviderTimeout,
		log:       log,
	}
}

func (s *syncer) stage(kind model.EntityKind, id string, stage Stage) {
	s.log.Debug("sync stage",
		zap.String("entity_kind", string(kind)),
		zap.String("id", id),
		zap.String("stage", string(stage)))
}

// fetch runs one provider call under the configured timeout
func (s *syncer) fetch(ctx context.Context, kind model.EntityKind, id string, call func(ctx context.Context) error) error {
	if id == "" {
		return apperrors.New(apperrors.CodeInvalidArg, string(kind)+" ID is required")
	}
	s.stage(kind, id, StageResolved)
	s.stage(kind, id, StageFetching)

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := call(fctx)
	if err == nil {
		return nil
	}
	if errors.Is(fctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = apperrors.Wrap(err, apperrors.CodeTransient, "provider did not answer within "+s.timeout.String())
	}
	s.log.Warn("sync fetch failed",
		zap.String("entity_kind", string(kind)),
		zap.String("id", id),
		zap.String("code", apperrors.CodeOf(err)),
		zap.Error(err))
	return err
}

// merge runs write under the entity's lock
func (s *syncer) merge(ctx context.Context, kind model.EntityKind, id string, write func() error) error {
	s.stage(kind, id, StageMerging)

	unlock, err := s.locks.Lock(ctx, kind.Key(id))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeTransient, "gave up waiting for concurrent sync of "+id)
	}
	defer unlock()

	if err := write(); err != nil {
		s.log.Error("sync merge failed",
			zap.String("entity_kind", string(kind)),
			zap.String("id", id),
			zap.String("code", apperrors.CodeOf(err)),
			zap.Error(err))
		return err
	}

	s.stage(kind, id, StageDone)
	return nil
}

// FetchChannel fetches a channel by canonical ID or handle form
func (s *syncer) FetchChannel(ctx context.Context, id string) (*provider.ChannelPayload, error) {
	var payload *provider.ChannelPayload
	err := s.fetch(ctx, model.KindChannel, id, func(ctx context.Context) error {
		var err error
		payload, err = s.provider.FetchChannel(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if payload == nil || payload.Channel.ID == "" {
		return nil, apperrors.New(apperrors.CodeTransient, "provider returned no channel ID for "+id)
	}
	return payload, nil
}

// MergeChannel upserts a fetched channel. This back-fills a placeholder row.
func (s *syncer) MergeChannel(ctx context.Context, payload *provider.ChannelPayload) (*model.Channel, error) {
	var stored *model.Channel
	err := s.merge(ctx, model.KindChannel, payload.Channel.ID, func() error {
		var err error
		stored, err = s.channels.Upsert(ctx, &payload.Channel)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// SyncChannel fetches and stores channel metadata. Channel videos are not enumerated.
func (s *syncer) SyncChannel(ctx context.Context, id string) (*model.Channel, error) {
	payload, err := s.FetchChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.MergeChannel(ctx, payload)
}

// FetchVideo fetches a video with its tags and chapters
func (s *syncer) FetchVideo(ctx context.Context, id string) (*provider.VideoPayload, error) {
	var payload *provider.VideoPayload
	err := s.fetch(ctx, model.KindVideo, id, func(ctx context.Context) error {
		var err error
		payload, err = s.provider.FetchVideo(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if payload == nil || payload.Video.ID == "" {
		return nil, apperrors.New(apperrors.CodeTransient, "provider returned no video ID for "+id)
	}
	return payload, nil
}

// MergeVideo stores a fetched video. An unknown owning channel is created as a
// placeholder first so the video always references a stored channel.
func (s *syncer) MergeVideo(ctx context.Context, payload *provider.VideoPayload) (*model.Video, error) {
	video := payload.Video
	if video.ChannelID == "" {
		return nil, apperrors.New(apperrors.CodeTransient, "provider returned no channel for video "+video.ID)
	}

	var stored *model.Video
	err := s.merge(ctx, model.KindVideo, video.ID, func() error {
		created, err := s.channels.EnsureExists(ctx, video.ChannelID, payload.ChannelName)
		if err != nil {
			return err
		}
		if created {
			s.log.Info("created placeholder channel",
				zap.String("channel_id", video.ChannelID),
				zap.String("video_id", video.ID))
		}

		stored, err = s.videos.Upsert(ctx, &video, payload.Tags, payload.Chapters)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// SyncVideo fetches and stores one video. A stored video the provider no
// longer serves is marked unavailable and the NOT_FOUND error is returned.
func (s *syncer) SyncVideo(ctx context.Context, id string) (*model.Video, error) {
	payload, err := s.FetchVideo(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.markUnavailable(ctx, id)
		}
		return nil, err
	}
	return s.MergeVideo(ctx, payload)
}

func (s *syncer) markUnavailable(ctx context.Context, id string) {
	err := s.merge(ctx, model.KindVideo, id, func() error {
		return s.videos.SetStatus(ctx, id, model.VideoUnavailable)
	})
	switch {
	case err == nil:
		s.log.Info("video no longer available", zap.String("video_id", id))
	case apperrors.IsNotFound(err):
	default:
		s.log.Warn("could not mark video unavailable", zap.String("video_id", id), zap.Error(err))
	}
}

// FetchPlaylist fetches playlist metadata and its member list
func (s *syncer) FetchPlaylist(ctx context.Context, id string) (*provider.PlaylistPayload, error) {
	var payload *provider.PlaylistPayload
	err := s.fetch(ctx, model.KindPlaylist, id, func(ctx context.Context) error {
		var err error
		payload, err = s.provider.FetchPlaylist(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if payload == nil || payload.Playlist.ID == "" {
		return nil, apperrors.New(apperrors.CodeTransient, "provider returned no playlist ID for "+id)
	}
	return payload, nil
}

// MergePlaylist stores a fetched playlist and its membership.
// Member videos are recorded by ID only and synced on demand.
func (s *syncer) MergePlaylist(ctx context.Context, payload *provider.PlaylistPayload) (*model.Playlist, error) {
	playlist := payload.Playlist
	if playlist.ChannelID != nil && *playlist.ChannelID == "" {
		playlist.ChannelID = nil
	}

	members := payload.MemberIDs
	if members == nil {
		members = []string{}
	}

	var stored *model.Playlist
	err := s.merge(ctx, model.KindPlaylist, playlist.ID, func() error {
		if playlist.ChannelID != nil {
			if _, err := s.channels.EnsureExists(ctx, *playlist.ChannelID, payload.ChannelName); err != nil {
				return err
			}
		}

		var err error
		stored, err = s.playlists.Upsert(ctx, &playlist, members)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// SyncPlaylist fetches and stores one playlist
func (s *syncer) SyncPlaylist(ctx context.Context, id string) (*model.Playlist, error) {
	payload, err := s.FetchPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.MergePlaylist(ctx, payload)
}
