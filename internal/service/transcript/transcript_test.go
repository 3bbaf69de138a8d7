package transcript

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Taichi-iskw/yt-library/internal/cache"
	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/logger"
	"github.com/Taichi-iskw/yt-library/internal/model"
	"github.com/Taichi-iskw/yt-library/internal/provider"
	"github.com/Taichi-iskw/yt-library/internal/provider/providertest"
	"github.com/Taichi-iskw/yt-library/internal/repository/repotest"
	"github.com/Taichi-iskw/yt-library/internal/service/common"
	"github.com/Taichi-iskw/yt-library/internal/service/syncer"
)

func strPtr(s string) *string { return &s }

func setupStore() *repotest.Fake {
	store := repotest.New()
	store.PutVideo(&model.Video{ID: "v1", ChannelID: "UC1", Title: "Talk"})
	return store
}

func samplePayload() *provider.TranscriptPayload {
	return &provider.TranscriptPayload{
		Language:  "en",
		PlainText: "welcome everyone first point second point thanks",
		Cues: []provider.Cue{
			{Start: 0, End: 2, Text: "welcome everyone"},
			{Start: 10, End: 12, Text: "first point"},
			{Start: 65, End: 67, Text: "second point"},
			{Start: 120, End: 122, Text: "thanks"},
		},
		Chapters: []provider.ChapterSpan{
			{Start: 60, Title: "Main"},
			{Start: 0, Title: "Intro"},
			{Start: 118, Title: ""},
		},
	}
}

func TestGetTranscript_FetchesOnceThenServesCache(t *testing.T) {
	ctx := context.Background()
	store := setupStore()
	p := &providertest.Provider{}
	p.On("FetchTranscript", mock.Anything, "v1").Return(samplePayload(), nil).Once()

	s := NewService(p, store.Store(), nil, Options{}, nil)

	first, err := s.GetTranscript(ctx, "v1", false)
	require.NoError(t, err)
	assert.Equal(t, model.TranscriptAvailable, first.Status)
	assert.Equal(t, "en", first.Language)
	assert.Equal(t, "welcome everyone first point second point thanks", first.PlainText)

	second, err := s.GetTranscript(ctx, "v1", false)
	require.NoError(t, err)
	assert.Equal(t, first.PlainText, second.PlainText)

	p.AssertNumberOfCalls(t, "FetchTranscript", 1)
}

func TestGetTranscript_ChaptersSortedAndAligned(t *testing.T) {
	store := setupStore()
	p := &providertest.Provider{}
	p.On("FetchTranscript", mock.Anything, "v1").Return(samplePayload(), nil)

	got, err := NewService(p, store.Store(), nil, Options{}, nil).GetTranscript(context.Background(), "v1", false)
	require.NoError(t, err)

	require.Len(t, got.Chapters, 3)
	assert.Equal(t, "Intro", got.Chapters[0].Title)
	assert.Equal(t, "welcome everyone first point", *got.Chapters[0].Text)
	assert.Equal(t, "Main", got.Chapters[1].Title)
	assert.Equal(t, "second point", *got.Chapters[1].Text)
	assert.Equal(t, UntitledChapter, got.Chapters[2].Title)
	assert.Equal(t, "thanks", *got.Chapters[2].Text)

	// chapters land in the video's timestamp sequence
	assert.Len(t, store.Video("v1").Timestamps, 3)
}

func TestGetTranscript_FallsBackToStoredTimestamps(t *testing.T) {
	store := repotest.New()
	store.PutVideo(&model.Video{
		ID: "v1", ChannelID: "UC1", Title: "Talk",
		Timestamps: []model.Timestamp{{StartSeconds: 60, Title: "Later"}, {StartSeconds: 0, Title: "Start"}},
	})
	payload := samplePayload()
	payload.Chapters = nil
	p := &providertest.Provider{}
	p.On("FetchTranscript", mock.Anything, "v1").Return(payload, nil)

	got, err := NewService(p, store.Store(), nil, Options{}, nil).GetTranscript(context.Background(), "v1", false)
	require.NoError(t, err)
	require.Len(t, got.Chapters, 2)
	assert.Equal(t, "Start", got.Chapters[0].Title)
	assert.Equal(t, "second point thanks", *got.Chapters[1].Text)
}

func TestGetTranscript_SyncDuringFetchKeepsNewChapters(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	store.PutVideo(&model.Video{
		ID: "v1", ChannelID: "UC1", Title: "Talk",
		Timestamps: []model.Timestamp{{StartSeconds: 0, Title: "Old"}},
	})

	locks := common.NewKeyedMutex()
	p := &providertest.Provider{}
	sy := syncer.NewSyncer(p, store.Store(), syncer.Options{ProviderTimeout: time.Second, Locks: locks}, nil)
	p.On("FetchVideo", mock.Anything, "v1").Return(&provider.VideoPayload{
		Video:    model.Video{ID: "v1", ChannelID: "UC1", Title: "Talk"},
		Chapters: []model.Timestamp{{StartSeconds: 0, Title: "NewA"}, {StartSeconds: 60, Title: "NewB"}},
	}, nil)

	payload := samplePayload()
	payload.Chapters = nil
	p.On("FetchTranscript", mock.Anything, "v1").
		Run(func(mock.Arguments) {
			_, err := sy.SyncVideo(ctx, "v1")
			assert.NoError(t, err)
		}).
		Return(payload, nil)

	s := NewService(p, store.Store(), nil, Options{Locks: locks}, nil)
	got, err := s.GetTranscript(ctx, "v1", false)
	require.NoError(t, err)

	stored := store.Video("v1").Timestamps
	require.Len(t, stored, 2)
	assert.Equal(t, "NewA", stored[0].Title)
	assert.Equal(t, "NewB", stored[1].Title)
	require.NotNil(t, stored[0].Text)
	assert.Equal(t, "welcome everyone first point", *stored[0].Text)
	assert.Equal(t, "second point thanks", *stored[1].Text)
	assert.Equal(t, stored, got.Chapters)
	assert.Zero(t, store.Calls("transcripts.Save"))
}

func TestGetTranscript_WaitsForVideoLock(t *testing.T) {
	store := setupStore()
	locks := common.NewKeyedMutex()
	p := &providertest.Provider{}
	p.On("FetchTranscript", mock.Anything, "v1").Return(samplePayload(), nil)

	unlock, err := locks.Lock(context.Background(), model.KindVideo.Key("v1"))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = NewService(p, store.Store(), nil, Options{Locks: locks}, nil).GetTranscript(ctx, "v1", false)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeTransient, apperrors.CodeOf(err))
	assert.Zero(t, store.Calls("transcripts.Save"))
}

func TestGetTranscript_NotFoundIsCached(t *testing.T) {
	ctx := context.Background()
	store := setupStore()
	p := &providertest.Provider{}
	p.On("FetchTranscript", mock.Anything, "v1").
		Return(nil, apperrors.New(apperrors.CodeNotFound, "no subtitles"))

	s := NewService(p, store.Store(), nil, Options{}, nil)

	_, err := s.GetTranscript(ctx, "v1", false)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.GetTranscript(ctx, "v1", false)
	assert.True(t, apperrors.IsNotFound(err))

	p.AssertNumberOfCalls(t, "FetchTranscript", 1)
	assert.Equal(t, model.TranscriptNotFound, store.Transcript("v1").Status)
}

func TestGetTranscript_ForceRefreshRequeries(t *testing.T) {
	ctx := context.Background()
	store := setupStore()
	p := &providertest.Provider{}
	p.On("FetchTranscript", mock.Anything, "v1").
		Return(nil, apperrors.New(apperrors.CodeNotFound, "no subtitles")).Once()
	p.On("FetchTranscript", mock.Anything, "v1").Return(samplePayload(), nil).Once()

	s := NewService(p, store.Store(), nil, Options{}, nil)

	_, err := s.GetTranscript(ctx, "v1", false)
	require.True(t, apperrors.IsNotFound(err))

	got, err := s.GetTranscript(ctx, "v1", true)
	require.NoError(t, err)
	assert.Equal(t, model.TranscriptAvailable, got.Status)
	p.AssertNumberOfCalls(t, "FetchTranscript", 2)
}

func TestGetTranscript_TransientIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := setupStore()
	p := &providertest.Provider{}
	p.On("FetchTranscript", mock.Anything, "v1").
		Return(nil, apperrors.New(apperrors.CodeTransient, "HTTP Error 429"))

	s := NewService(p, store.Store(), nil, Options{}, nil)

	for i := 0; i < 2; i++ {
		_, err := s.GetTranscript(ctx, "v1", false)
		assert.True(t, apperrors.IsRetryable(err))
	}
	p.AssertNumberOfCalls(t, "FetchTranscript", 2)
	assert.Nil(t, store.Transcript("v1"))
}

func TestGetTranscript_Timeout(t *testing.T) {
	store := setupStore()
	p := &providertest.Provider{}
	p.On("FetchTranscript", mock.Anything, "v1").
		Run(providertest.WaitForCancel).
		Return(nil, context.DeadlineExceeded)

	s := NewService(p, store.Store(), nil, Options{Timeout: 20 * time.Millisecond}, nil)
	_, err := s.GetTranscript(context.Background(), "v1", false)
	assert.Equal(t, apperrors.CodeTransient, apperrors.CodeOf(err))
	assert.Nil(t, store.Transcript("v1"))
}

func TestGetTranscript_UnknownVideo(t *testing.T) {
	p := &providertest.Provider{}
	s := NewService(p, repotest.New().Store(), nil, Options{}, nil)

	_, err := s.GetTranscript(context.Background(), "nope", false)
	assert.True(t, apperrors.IsNotFound(err))
	p.AssertNotCalled(t, "FetchTranscript", mock.Anything, mock.Anything)
}

func TestGetTranscript_ConcurrentCallersShareOneFetch(t *testing.T) {
	store := setupStore()
	p := &providertest.Provider{}
	p.On("FetchTranscript", mock.Anything, "v1").
		Run(func(mock.Arguments) { time.Sleep(50 * time.Millisecond) }).
		Return(samplePayload(), nil)

	s := NewService(p, store.Store(), nil, Options{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GetTranscript(context.Background(), "v1", true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p.AssertNumberOfCalls(t, "FetchTranscript", 1)
}

func TestGetTranscript_HotCacheSkipsDatabase(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client, err := cache.NewClient(ctx, "redis://"+mr.Addr(), "test", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := setupStore()
	p := &providertest.Provider{}
	p.On("FetchTranscript", mock.Anything, "v1").Return(samplePayload(), nil).Once()

	s := NewService(p, store.Store(), cache.NewTranscriptCache(client, time.Hour), Options{}, nil)

	_, err = s.GetTranscript(ctx, "v1", false)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:transcript:v1"))
	assert.Equal(t, 1, store.Calls("transcripts.Get"))

	got, err := s.GetTranscript(ctx, "v1", false)
	require.NoError(t, err)
	assert.Len(t, got.Chapters, 3)
	assert.Equal(t, 1, store.Calls("transcripts.Get"))

	s.Invalidate(ctx, "v1")
	assert.False(t, mr.Exists("test:transcript:v1"))

	_, err = s.GetTranscript(ctx, "v1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Calls("transcripts.Get"))
	p.AssertNumberOfCalls(t, "FetchTranscript", 1)
}

func TestCached_NeverCallsProvider(t *testing.T) {
	ctx := context.Background()
	store := setupStore()
	p := &providertest.Provider{}
	s := NewService(p, store.Store(), nil, Options{}, nil)

	_, err := s.Cached(ctx, "v1")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = store.Store().Transcripts.Save(ctx, &model.Transcript{
		VideoID: "v1", Status: model.TranscriptAvailable, PlainText: "hello",
	})
	require.NoError(t, err)

	got, err := s.Cached(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.PlainText)
	p.AssertNotCalled(t, "FetchTranscript", mock.Anything, mock.Anything)
}

func TestAlignChapters(t *testing.T) {
	cues := []provider.Cue{
		{Start: 1, Text: "before"},
		{Start: 5, Text: "a"},
		{Start: 9.99, Text: "b"},
		{Start: 10, Text: "c"},
	}

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, AlignChapters(nil, cues))
	})

	t.Run("boundaries", func(t *testing.T) {
		got := AlignChapters([]model.Timestamp{
			{StartSeconds: 10, Title: "Two"},
			{StartSeconds: 5, Title: "One", Text: strPtr("stale")},
		}, cues)
		require.Len(t, got, 2)
		assert.Equal(t, "a b", *got[0].Text)
		assert.Equal(t, "c", *got[1].Text)
	})

	t.Run("chapter without cues", func(t *testing.T) {
		got := AlignChapters([]model.Timestamp{{StartSeconds: 100, Title: "Outro"}}, cues)
		require.Len(t, got, 1)
		assert.Nil(t, got[0].Text)
	})

	t.Run("input untouched", func(t *testing.T) {
		in := []model.Timestamp{{StartSeconds: 10, Title: ""}, {StartSeconds: 5, Title: "One"}}
		_ = AlignChapters(in, cues)
		assert.Equal(t, "", in[0].Title)
	})
}
