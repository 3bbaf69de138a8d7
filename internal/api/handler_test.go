package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/model"
	"github.com/Taichi-iskw/yt-library/internal/provider"
	"github.com/Taichi-iskw/yt-library/internal/provider/providertest"
	"github.com/Taichi-iskw/yt-library/internal/repository/repotest"
	"github.com/Taichi-iskw/yt-library/internal/service/common"
	"github.com/Taichi-iskw/yt-library/internal/service/download"
	"github.com/Taichi-iskw/yt-library/internal/service/library"
	"github.com/Taichi-iskw/yt-library/internal/service/syncer"
	"github.com/Taichi-iskw/yt-library/internal/service/transcript"
)

const videoID = "dQw4w9WgXcQ"

type testServer struct {
	store    *repotest.Fake
	provider *providertest.Provider
	handler  http.Handler
	root     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repotest.New()
	p := &providertest.Provider{}
	root := t.TempDir()

	locks := common.NewKeyedMutex()
	lib := library.New(
		store.Store(),
		syncer.NewSyncer(p, store.Store(), syncer.Options{ProviderTimeout: time.Second, Locks: locks}, nil),
		transcript.NewService(p, store.Store(), nil, transcript.Options{Timeout: time.Second, Locks: locks}, nil),
		download.NewService(p, store.Store(), download.Options{Root: root}, nil),
		library.Options{},
		nil,
	)
	return &testServer{store: store, provider: p, handler: NewRouter(lib, nil, Options{}), root: root}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestProcessURL(t *testing.T) {
	s := newTestServer(t)
	s.provider.On("FetchVideo", mock.Anything, videoID).Return(&provider.VideoPayload{
		Video:       model.Video{ID: videoID, ChannelID: "UC1", Title: "Song"},
		ChannelName: "Rick",
	}, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"created", `{"url":"https://youtu.be/` + videoID + `"}`, http.StatusCreated, ""},
		{"cached", `{"url":"https://youtu.be/` + videoID + `"}`, http.StatusOK, ""},
		{"unrecognized", `{"url":"https://vimeo.com/123"}`, http.StatusUnprocessableEntity, apperrors.CodeParse},
		{"bad json", `{"url":`, http.StatusBadRequest, apperrors.CodeInvalidArg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/process", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				var body ErrorResponse
				decodeBody(t, rec, &body)
				assert.Equal(t, tt.wantCode, body.Code)
			}
		})
	}
}

func TestProcessURL_TransientIs503(t *testing.T) {
	s := newTestServer(t)
	s.provider.On("FetchVideo", mock.Anything, videoID).
		Return(nil, apperrors.New(apperrors.CodeTransient, "HTTP Error 429"))

	rec := s.do(t, http.MethodPost, "/api/process", `{"url":"https://youtu.be/`+videoID+`"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVideos(t *testing.T) {
	s := newTestServer(t)
	for _, id := range []string{"a", "b", "c"} {
		s.store.PutVideo(&model.Video{ID: id, ChannelID: "UC1", Title: id})
	}

	rec := s.do(t, http.MethodGet, "/api/videos?page=2&per_page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page model.VideoPage
	decodeBody(t, rec, &page)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 1)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/videos?page=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/videos?page=0", "").Code)

	rec = s.do(t, http.MethodGet, "/api/videos/a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var video model.Video
	decodeBody(t, rec, &video)
	assert.Equal(t, "a", video.ID)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/videos/zzz", "").Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/videos/a", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/videos/a", "").Code)
}

func TestUpdateVideo_PartialSuccess(t *testing.T) {
	s := newTestServer(t)
	s.provider.On("FetchVideo", mock.Anything, videoID).Return(&provider.VideoPayload{
		Video: model.Video{ID: videoID, ChannelID: "UC1", Title: "Song"},
	}, nil)
	s.provider.On("FetchTranscript", mock.Anything, videoID).
		Return(nil, apperrors.New(apperrors.CodeTransient, "connection reset"))

	rec := s.do(t, http.MethodPost, "/api/videos/"+videoID+"/update", "")
	assert.Equal(t, http.StatusMultiStatus, rec.Code)

	var body UpdateResponse
	decodeBody(t, rec, &body)
	require.NotNil(t, body.Video)
	assert.Nil(t, body.VideoError)
	require.NotNil(t, body.TranscriptError)
	assert.Equal(t, apperrors.CodeTransient, body.TranscriptError.Code)
}

func TestTranscript(t *testing.T) {
	s := newTestServer(t)
	s.store.PutVideo(&model.Video{ID: videoID, ChannelID: "UC1", Title: "Song"})
	s.provider.On("FetchTranscript", mock.Anything, videoID).
		Return(nil, apperrors.New(apperrors.CodeNotFound, "no subtitles")).Once()
	s.provider.On("FetchTranscript", mock.Anything, videoID).Return(&provider.TranscriptPayload{
		Language: "en", PlainText: "hello",
	}, nil).Once()

	path := "/api/videos/" + videoID + "/transcript"
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, "").Code)

	rec := s.do(t, http.MethodGet, path+"?refresh=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Transcript
	decodeBody(t, rec, &got)
	assert.Equal(t, "hello", got.PlainText)
	s.provider.AssertNumberOfCalls(t, "FetchTranscript", 2)
}

func TestAsk_WithoutAnswerer(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/videos/"+videoID+"/ask", `{"session_id":"s1","query":"why?"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadRoutes(t *testing.T) {
	s := newTestServer(t)
	s.store.PutChannel(&model.Channel{ID: "UC1", Name: "Rick"})
	s.store.PutVideo(&model.Video{ID: videoID, ChannelID: "UC1", Title: "Song"})
	dir := filepath.Join(s.root, "Rick [UC1]")
	want := filepath.Join(dir, videoID+".mp4")
	s.provider.On("DownloadVideo", mock.Anything, videoID, dir).Return(want, nil)

	rec := s.do(t, http.MethodPost, "/api/videos/"+videoID+"/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body DownloadResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, want, body.FilePath)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/videos/"+videoID+"/download", "").Code)

	// the recorded file does not exist on disk, so verification clears it
	rec = s.do(t, http.MethodPost, "/api/videos/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report download.VerifyReport
	decodeBody(t, rec, &report)
	assert.Equal(t, []string{videoID}, report.Cleared)
}

func TestCancelDownloadRoute(t *testing.T) {
	s := newTestServer(t)
	s.store.PutVideo(&model.Video{ID: videoID, ChannelID: "UC1", Title: "Song"})
	s.provider.On("DownloadVideo", mock.Anything, videoID, mock.Anything).
		Run(providertest.WaitForCancel).
		Return("", context.Canceled)

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- s.do(t, http.MethodPost, "/api/videos/"+videoID+"/download", "") }()

	require.Eventually(t, func() bool {
		return s.do(t, http.MethodDelete, "/api/videos/"+videoID+"/download", "").Code == http.StatusAccepted
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusServiceUnavailable, (<-done).Code)
}

func TestChannelsAndPlaylists(t *testing.T) {
	s := newTestServer(t)
	s.store.PutChannel(&model.Channel{ID: "UC1", Name: "Rick"})
	s.store.PutVideo(&model.Video{ID: "a", ChannelID: "UC1", Title: "Zeta"})
	s.store.PutVideo(&model.Video{ID: "b", ChannelID: "UC1", Title: "Alpha"})
	s.store.PutPlaylist(&model.Playlist{ID: "PL1", Title: "Mix", VideoIDs: []string{"a", "b", "unsynced"}})

	rec := s.do(t, http.MethodGet, "/api/channels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var channels []*model.Channel
	decodeBody(t, rec, &channels)
	assert.Len(t, channels, 1)

	rec = s.do(t, http.MethodGet, "/api/channels/UC1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail model.ChannelDetail
	decodeBody(t, rec, &detail)
	assert.Len(t, detail.Videos, 2)

	rec = s.do(t, http.MethodGet, "/api/playlists/PL1/videos?sort_by=title&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []*model.PlaylistEntry
	decodeBody(t, rec, &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].VideoID)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/playlists/PL1/videos?sort_by=views", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/playlists", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/playlists/PL1", "").Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/playlists/PL1", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/playlists/PL1", "").Code)
}

func TestTagsAndScan(t *testing.T) {
	s := newTestServer(t)
	s.store.PutChannel(&model.Channel{ID: "UC1", Name: "Rick"})
	s.store.PutVideo(&model.Video{ID: "a", ChannelID: "UC1", Title: "Zeta", Tags: []string{"pop", "80s"}})
	s.store.PutVideo(&model.Video{ID: "b", ChannelID: "UC1", Title: "Alpha", Tags: []string{"pop"}})

	rec := s.do(t, http.MethodGet, "/api/tags?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tags []*model.TagCount
	decodeBody(t, rec, &tags)
	assert.Equal(t, []*model.TagCount{{Name: "80s", VideoCount: 1}}, tags)

	rec = s.do(t, http.MethodGet, "/api/channels/UC1/tags?min_videos=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &tags)
	assert.Equal(t, []*model.TagCount{{Name: "pop", VideoCount: 2}}, tags)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/channels/UC1/tags?min_videos=x", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/channels/UC9/tags", "").Code)

	file := filepath.Join(s.root, "Rick [UC1]", "Alpha.mp4")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(t, os.WriteFile(file, []byte("media"), 0644))

	rec = s.do(t, http.MethodPost, "/api/videos/scan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report download.ScanReport
	decodeBody(t, rec, &report)
	assert.Equal(t, []string{"b"}, report.Updated)
	assert.True(t, s.store.Video("b").Downloaded)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{apperrors.CodeParse, http.StatusUnprocessableEntity},
		{apperrors.CodeInvalidArg, http.StatusBadRequest},
		{apperrors.CodeNotFound, http.StatusNotFound},
		{apperrors.CodeTransient, http.StatusServiceUnavailable},
		{apperrors.CodeConflict, http.StatusConflict},
		{apperrors.CodeStorage, http.StatusInternalServerError},
		{apperrors.CodeIO, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(apperrors.New(tt.code, "x")))
		})
	}
}
