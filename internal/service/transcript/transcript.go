// Package transcript serves video transcripts from the local cache and
// fetches them from the provider on first use or on explicit refresh.
package transcript

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/logger"
	"github.com/Taichi-iskw/yt-library/internal/model"
	"github.com/Taichi-iskw/yt-library/internal/provider"
	"github.com/Taichi-iskw/yt-library/internal/repository"
	"github.com/Taichi-iskw/yt-library/internal/service/common"
)

// UntitledChapter names chapters the provider left without a title
const UntitledChapter = "Untitled Chapter"

// DefaultTimeout bounds one provider transcript fetch
const DefaultTimeout = 60 * time.Second

// HotCache is an optional cache in front of the transcript table
type HotCache interface {
	Get(ctx context.Context, videoID string) (*model.Transcript, bool)
	Put(ctx context.Context, transcript *model.Transcript)
	Invalidate(ctx context.Context, videoID string)
}

// Service defines transcript operations
type Service interface {
	// GetTranscript returns the cached transcript, fetching it when absent or when forceRefresh is set.
	// A cached "no transcript" outcome is returned as NOT_FOUND without asking the provider again.
	GetTranscript(ctx context.Context, videoID string, forceRefresh bool) (*model.Transcript, error)

	// Cached returns the stored transcript and never calls the provider
	Cached(ctx context.Context, videoID string) (*model.Transcript, error)

	// Invalidate drops the hot cache entry of a video
	Invalidate(ctx context.Context, videoID string)
}

// Options tunes a Service
type Options struct {
	Timeout time.Duration
	// Locks must be the set the Syncer writes videos under, so chapters are
	// never written from a stale read. nil gives the Service its own.
	Locks *common.KeyedMutex
}

// service implements Service
type service struct {
	provider    provider.MetadataProvider
	videos      repository.VideoRepository
	transcripts repository.TranscriptRepository
	hot         HotCache
	timeout     time.Duration
	locks       *common.KeyedMutex
	group       singleflight.Group
	log         *logger.Logger
}

// NewService creates a new transcript Service. hot may be nil.
func NewService(p provider.MetadataProvider, store *repository.Store, hot HotCache, opts Options, log *logger.Logger) Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	if opts.Locks == nil {
		opts.Locks = common.NewKeyedMutex()
	}
	return &service{
		provider:    p,
		videos:      store.Videos,
		transcripts: store.Transcripts,
		hot:         hot,
		timeout:     opts.Timeout,
		locks:       opts.Locks,
		log:         log,
	}
}

func (s *service) GetTranscript(ctx context.Context, videoID string, forceRefresh bool) (*model.Transcript, error) {
	if videoID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "video ID is required")
	}

	if !forceRefresh {
		cached, err := s.lookup(ctx, videoID)
		if err == nil {
			return outcome(cached)
		}
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
	}

	// Concurrent fetches of one video share a single provider call. The shared
	// call is detached from the first caller so its cancellation does not fail the others.
	ch := s.group.DoChan(videoID, func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx), videoID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return outcome(res.Val.(*model.Transcript))
	case <-ctx.Done():
		return nil, apperrors.Wrap(ctx.Err(), apperrors.CodeTransient, "stopped waiting for transcript of "+videoID)
	}
}

func (s *service) Cached(ctx context.Context, videoID string) (*model.Transcript, error) {
	if videoID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "video ID is required")
	}
	cached, err := s.lookup(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return outcome(cached)
}

func (s *service) Invalidate(ctx context.Context, videoID string) {
	if s.hot != nil {
		s.hot.Invalidate(ctx, videoID)
	}
}

// lookup reads the hot cache, then the transcript table
func (s *service) lookup(ctx context.Context, videoID string) (*model.Transcript, error) {
	if s.hot != nil {
		if t, ok := s.hot.Get(ctx, videoID); ok {
			return t, nil
		}
	}

	t, err := s.transcripts.Get(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if s.hot != nil {
		s.hot.Put(ctx, t)
	}
	return t, nil
}

// outcome turns a stored "not found" result into the NOT_FOUND error
func outcome(t *model.Transcript) (*model.Transcript, error) {
	if t.Status == model.TranscriptNotFound {
		return nil, apperrors.New(apperrors.CodeNotFound, "no transcript available for video "+t.VideoID)
	}
	return t, nil
}

// refresh fetches the transcript from the provider and stores the outcome.
// The write runs under the video's lock against a fresh read of its chapters,
// so a video sync that lands during the fetch is not reverted.
func (s *service) refresh(ctx context.Context, videoID string) (*model.Transcript, error) {
	if _, err := s.videos.GetByID(ctx, videoID); err != nil {
		return nil, err
	}

	log := s.log.WithField("video_id", videoID)
	log.Debug("fetching transcript")

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := s.provider.FetchTranscript(fctx, videoID)
	switch {
	case err == nil:
	case apperrors.IsNotFound(err):
		log.Info("video has no transcript")
		payload = nil
	case errors.Is(fctx.Err(), context.DeadlineExceeded):
		return nil, apperrors.Wrap(err, apperrors.CodeTransient, "transcript fetch did not finish within "+s.timeout.String())
	default:
		log.Warn("transcript fetch failed", zap.String("code", apperrors.CodeOf(err)), zap.Error(err))
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, model.KindVideo.Key(videoID))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransient, "gave up waiting for concurrent sync of "+videoID)
	}
	defer unlock()

	if payload == nil {
		return s.store(ctx, s.transcripts.Save, &model.Transcript{VideoID: videoID, Status: model.TranscriptNotFound})
	}

	t := &model.Transcript{
		VideoID:   videoID,
		Status:    model.TranscriptAvailable,
		Language:  payload.Language,
		PlainText: payload.PlainText,
	}

	if spans := chaptersFromSpans(payload.Chapters); len(spans) > 0 {
		t.Chapters = AlignChapters(spans, payload.Cues)
		return s.store(ctx, s.transcripts.Save, t)
	}

	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	t.Chapters = alignStored(video.Timestamps, payload.Cues)
	return s.store(ctx, s.transcripts.Annotate, t)
}

func (s *service) store(ctx context.Context, write func(context.Context, *model.Transcript) (*model.Transcript, error), t *model.Transcript) (*model.Transcript, error) {
	stored, err := write(ctx, t)
	if err != nil {
		return nil, err
	}
	if s.hot != nil {
		s.hot.Put(ctx, stored)
	}
	return stored, nil
}

// alignStored aligns cues to the stored chapters and keeps their stored
// titles, which identify the rows the text belongs to
func alignStored(stored []model.Timestamp, cues []provider.Cue) []model.Timestamp {
	aligned := AlignChapters(stored, cues)
	sorted := repository.SortTimestamps(stored)
	for i := range aligned {
		aligned[i].Title = sorted[i].Title
	}
	return aligned
}

func chaptersFromSpans(spans []provider.ChapterSpan) []model.Timestamp {
	chapters := make([]model.Timestamp, 0, len(spans))
	for _, span := range spans {
		chapters = append(chapters, model.Timestamp{StartSeconds: span.Start, Title: span.Title})
	}
	return chapters
}

// AlignChapters sorts chapters by start time and gives each the text of the
// cues starting within [start, next start). The last chapter runs to the end.
// It returns nil when there are no chapters.
func AlignChapters(chapters []model.Timestamp, cues []provider.Cue) []model.Timestamp {
	if len(chapters) == 0 {
		return nil
	}

	sorted := repository.SortTimestamps(chapters)
	for i := range sorted {
		if strings.TrimSpace(sorted[i].Title) == "" {
			sorted[i].Title = UntitledChapter
		}

		start := sorted[i].StartSeconds
		parts := make([]string, 0)
		for _, cue := range cues {
			if cue.Start < start {
				continue
			}
			if i+1 < len(sorted) && cue.Start >= sorted[i+1].StartSeconds {
				continue
			}
			parts = append(parts, cue.Text)
		}

		sorted[i].Text = nil
		if len(parts) > 0 {
			text := strings.Join(parts, " ")
			sorted[i].Text = &text
		}
	}
	return sorted
}
