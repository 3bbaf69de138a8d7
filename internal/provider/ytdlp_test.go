package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/logger"
	"github.com/Taichi-iskw/yt-library/internal/service/common"
)

func newTestProvider(m *mockCmdRunner) *YtDlp {
	return NewYtDlp(m, Options{}, logger.Nop())
}

func TestYtDlp_FetchChannel(t *testing.T) {
	tests := []struct {
		name          string
		id            string
		mockSetup     func(*mockCmdRunner)
		check         func(t *testing.T, p *ChannelPayload)
		wantCode      string
		errorContains string
	}{
		{
			name: "channel with tabs and thumbnails",
			id:   "@veritasium",
			mockSetup: func(m *mockCmdRunner) {
				expectedArgs := []string{"--dump-single-json", "--flat-playlist", "--no-warnings", "https://www.youtube.com/@veritasium"}
				jsonResponse := `{
					"id": "UCHnyfMqiRRG1u-2MsSQLbXA",
					"channel_id": "UCHnyfMqiRRG1u-2MsSQLbXA",
					"channel": "Veritasium",
					"title": "Veritasium",
					"description": "An element of truth",
					"channel_follower_count": 16500000,
					"thumbnails": [
						{"id": "avatar_uncropped", "url": "https://yt3/avatar"},
						{"id": "banner_uncropped", "url": "https://yt3/banner"},
						{"id": "0", "url": "https://yt3/other"}
					],
					"entries": [
						{"_type": "playlist", "title": "Veritasium - Videos", "playlist_count": 400},
						{"_type": "playlist", "title": "Veritasium - Shorts", "playlist_count": 50},
						{"_type": "url", "title": "Veritasium - Live"}
					]
				}`
				m.On("Run", mock.Anything, "yt-dlp", expectedArgs).Return([]byte(jsonResponse), nil)
			},
			check: func(t *testing.T, p *ChannelPayload) {
				c := p.Channel
				assert.Equal(t, "UCHnyfMqiRRG1u-2MsSQLbXA", c.ID)
				assert.Equal(t, "Veritasium", c.Name)
				require.NotNil(t, c.Description)
				assert.Equal(t, "An element of truth", *c.Description)
				require.NotNil(t, c.SubscriberCount)
				assert.Equal(t, int64(16500000), *c.SubscriberCount)
				require.NotNil(t, c.ThumbnailURL)
				assert.Equal(t, "https://yt3/avatar", *c.ThumbnailURL)
				require.NotNil(t, c.BannerURL)
				assert.Equal(t, "https://yt3/banner", *c.BannerURL)
				assert.Equal(t, map[string]int64{"Videos": 400, "Shorts": 50, "Live": 0}, c.ContentBreakdown)
				require.NotNil(t, c.VideoCount)
				assert.Equal(t, int64(450), *c.VideoCount)
			},
		},
		{
			name: "single tab channel lists videos directly",
			id:   "UCHnyfMqiRRG1u-2MsSQLbXA",
			mockSetup: func(m *mockCmdRunner) {
				jsonResponse := `{"id": "UCHnyfMqiRRG1u-2MsSQLbXA", "uploader": "Small", "entries": [{"_type": "url", "id": "a"}, {"_type": "url", "id": "b"}]}`
				m.On("Run", mock.Anything, "yt-dlp", mock.AnythingOfType("[]string")).Return([]byte(jsonResponse), nil)
			},
			check: func(t *testing.T, p *ChannelPayload) {
				assert.Equal(t, "Small", p.Channel.Name)
				assert.Nil(t, p.Channel.Description)
				assert.Equal(t, map[string]int64{"Videos": 2}, p.Channel.ContentBreakdown)
			},
		},
		{
			name: "channel does not exist",
			id:   "@nobody",
			mockSetup: func(m *mockCmdRunner) {
				m.On("Run", mock.Anything, "yt-dlp", mock.AnythingOfType("[]string")).
					Return(nil, &common.CmdError{Name: "yt-dlp", ExitCode: 1, Stderr: "ERROR: [youtube:tab] @nobody: This channel does not exist."})
			},
			wantCode: errors.CodeNotFound,
		},
		{
			name: "network failure is transient",
			id:   "@veritasium",
			mockSetup: func(m *mockCmdRunner) {
				m.On("Run", mock.Anything, "yt-dlp", mock.AnythingOfType("[]string")).
					Return(nil, &common.CmdError{Name: "yt-dlp", ExitCode: 1, Stderr: "ERROR: Unable to download webpage: HTTP Error 429: Too Many Requests"})
			},
			wantCode: errors.CodeTransient,
		},
		{
			name:          "empty ID",
			id:            "",
			mockSetup:     func(m *mockCmdRunner) {},
			wantCode:      errors.CodeInvalidArg,
			errorContains: "channel ID is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockCmdRunner{}
			tt.mockSetup(m)

			got, err := newTestProvider(m).FetchChannel(context.Background(), tt.id)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.CodeOf(err))
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				tt.check(t, got)
			}
			m.AssertExpectations(t)
		})
	}
}

func TestYtDlp_FetchVideo(t *testing.T) {
	m := &mockCmdRunner{}
	expectedArgs := []string{"--dump-json", "--no-playlist", "--skip-download", "--no-warnings", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}
	jsonResponse := `{
		"id": "dQw4w9WgXcQ",
		"title": "Never Gonna Give You Up",
		"description": "The official video",
		"channel_id": "UCuAXFkgsw1L7xaCfnd5JJOw",
		"channel": "Rick Astley",
		"upload_date": "20091025",
		"timestamp": 1256453863,
		"duration": 212.6,
		"view_count": 1600000000,
		"like_count": 18000000,
		"thumbnail": "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg",
		"tags": ["rick astley", "never gonna give you up"],
		"chapters": [
			{"start_time": 0.0, "end_time": 30.0, "title": "Intro"},
			{"start_time": 30.0, "end_time": 212.0, "title": ""}
		]
	}`
	m.On("Run", mock.Anything, "yt-dlp", expectedArgs).Return([]byte(jsonResponse), nil)

	got, err := newTestProvider(m).FetchVideo(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)

	v := got.Video
	assert.Equal(t, "dQw4w9WgXcQ", v.ID)
	assert.Equal(t, "UCuAXFkgsw1L7xaCfnd5JJOw", v.ChannelID)
	assert.Equal(t, "Never Gonna Give You Up", v.Title)
	require.NotNil(t, v.PublishedAt)
	assert.Equal(t, time.Unix(1256453863, 0).UTC(), *v.PublishedAt)
	require.NotNil(t, v.DurationSeconds)
	assert.Equal(t, int64(213), *v.DurationSeconds)
	require.NotNil(t, v.ViewCount)
	assert.Equal(t, int64(1600000000), *v.ViewCount)
	assert.Equal(t, "Rick Astley", got.ChannelName)
	assert.Equal(t, []string{"rick astley", "never gonna give you up"}, got.Tags)
	require.Len(t, got.Chapters, 2)
	assert.Equal(t, "Intro", got.Chapters[0].Title)
	assert.Equal(t, 30.0, got.Chapters[1].StartSeconds)
	assert.Equal(t, "Untitled Chapter", got.Chapters[1].Title)
}

func TestYtDlp_FetchVideo_NoTagsMeansEmptySet(t *testing.T) {
	m := &mockCmdRunner{}
	m.On("Run", mock.Anything, "yt-dlp", mock.AnythingOfType("[]string")).
		Return([]byte(`{"id": "dQw4w9WgXcQ", "title": "x", "channel_id": "UCuAXFkgsw1L7xaCfnd5JJOw", "upload_date": "20200102"}`), nil)

	got, err := newTestProvider(m).FetchVideo(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.NotNil(t, got.Tags)
	assert.Empty(t, got.Tags)
	assert.NotNil(t, got.Chapters)
	require.NotNil(t, got.Video.PublishedAt)
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), *got.Video.PublishedAt)
	assert.Nil(t, got.Video.DurationSeconds)
}

func TestYtDlp_FetchVideo_Unavailable(t *testing.T) {
	m := &mockCmdRunner{}
	m.On("Run", mock.Anything, "yt-dlp", mock.AnythingOfType("[]string")).
		Return(nil, &common.CmdError{Name: "yt-dlp", ExitCode: 1, Stderr: "ERROR: [youtube] xxxxxxxxxxx: Video unavailable"})

	_, err := newTestProvider(m).FetchVideo(context.Background(), "xxxxxxxxxxx")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestYtDlp_FetchVideo_Timeout(t *testing.T) {
	m := &mockCmdRunner{}
	m.On("Run", mock.Anything, "yt-dlp", mock.AnythingOfType("[]string")).Return(nil, context.DeadlineExceeded)

	_, err := newTestProvider(m).FetchVideo(context.Background(), "dQw4w9WgXcQ")
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestYtDlp_FetchPlaylist(t *testing.T) {
	m := &mockCmdRunner{}
	jsonResponse := `{
		"id": "PLabcdefghij",
		"title": "Favourites",
		"channel_id": "UCuAXFkgsw1L7xaCfnd5JJOw",
		"uploader": "Rick Astley",
		"playlist_count": 3,
		"entries": [{"id": "v1"}, {"id": "v2"}, {"id": "v1"}, {"id": ""}]
	}`
	m.On("Run", mock.Anything, "yt-dlp", []string{"--dump-single-json", "--flat-playlist", "--no-warnings", "https://www.youtube.com/playlist?list=PLabcdefghij"}).
		Return([]byte(jsonResponse), nil)

	got, err := newTestProvider(m).FetchPlaylist(context.Background(), "PLabcdefghij")
	require.NoError(t, err)
	assert.Equal(t, "PLabcdefghij", got.Playlist.ID)
	assert.Equal(t, "Favourites", got.Playlist.Title)
	require.NotNil(t, got.Playlist.ChannelID)
	assert.Equal(t, "UCuAXFkgsw1L7xaCfnd5JJOw", *got.Playlist.ChannelID)
	assert.Equal(t, "Rick Astley", got.ChannelName)
	assert.Equal(t, []string{"v1", "v2"}, got.MemberIDs)
}

func TestYtDlp_FetchTranscript(t *testing.T) {
	m := &mockCmdRunner{}
	m.On("Run", mock.Anything, "yt-dlp", mock.AnythingOfType("[]string")).
		Run(func(args mock.Arguments) {
			cmdArgs := args.Get(2).([]string)
			assert.Equal(t, "en.*,it.*", argAfter(cmdArgs, "--sub-langs"))
			dir := filepath.Dir(argAfter(cmdArgs, "-o"))
			vtt := "WEBVTT\n\n00:00:00.000 --> 00:00:05.000\nciao a tutti\n"
			require.NoError(t, os.WriteFile(filepath.Join(dir, "dQw4w9WgXcQ.it.vtt"), []byte(vtt), 0644))
			vtt = "WEBVTT\n\n00:00:00.000 --> 00:00:05.000\nhello everyone\n\n00:00:05.000 --> 00:00:09.000\nwelcome back\n"
			require.NoError(t, os.WriteFile(filepath.Join(dir, "dQw4w9WgXcQ.en-GB.vtt"), []byte(vtt), 0644))
		}).
		Return([]byte(`{"id": "dQw4w9WgXcQ", "chapters": [{"start_time": 0, "end_time": 5, "title": "Intro"}]}`), nil)

	got, err := newTestProvider(m).FetchTranscript(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "en-GB", got.Language)
	assert.Equal(t, "hello everyone welcome back", got.PlainText)
	assert.Len(t, got.Cues, 2)
	require.Len(t, got.Chapters, 1)
	assert.Equal(t, "Intro", got.Chapters[0].Title)
}

func TestYtDlp_FetchTranscript_NoSubtitles(t *testing.T) {
	m := &mockCmdRunner{}
	m.On("Run", mock.Anything, "yt-dlp", mock.AnythingOfType("[]string")).
		Return([]byte(`{"id": "dQw4w9WgXcQ"}`), nil)

	_, err := newTestProvider(m).FetchTranscript(context.Background(), "dQw4w9WgXcQ")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestYtDlp_DownloadVideo(t *testing.T) {
	m := &mockCmdRunner{}
	destDir := filepath.Join(t.TempDir(), "Rick Astley")
	m.On("Run", mock.Anything, "yt-dlp", mock.MatchedBy(func(args []string) bool {
		return argAfter(args, "-o") == filepath.Join(destDir, "%(id)s.%(ext)s") &&
			argAfter(args, "--print") == "after_move:filepath" &&
			strings.Contains(strings.Join(args, " "), "--force-overwrites")
	})).Return([]byte("[download] 100%\n"+filepath.Join(destDir, "Never Gonna Give You Up.mp4")+"\n"), nil)

	got, err := newTestProvider(m).DownloadVideo(context.Background(), "dQw4w9WgXcQ", destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "Never Gonna Give You Up.mp4"), got)
	m.AssertExpectations(t)
}

func TestYtDlp_DownloadVideo_NoPathReported(t *testing.T) {
	m := &mockCmdRunner{}
	m.On("Run", mock.Anything, "yt-dlp", mock.AnythingOfType("[]string")).Return([]byte(""), nil)

	_, err := newTestProvider(m).DownloadVideo(context.Background(), "dQw4w9WgXcQ", "/tmp/x")
	require.Error(t, err)
	assert.Equal(t, errors.CodeIO, errors.CodeOf(err))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"private video", &common.CmdError{Stderr: "ERROR: Private video. Sign in"}, errors.CodeNotFound},
		{"404", &common.CmdError{Stderr: "ERROR: HTTP Error 404: Not Found"}, errors.CodeNotFound},
		{"429", &common.CmdError{Stderr: "ERROR: HTTP Error 429"}, errors.CodeTransient},
		{"cancelled", context.Canceled, errors.CodeTransient},
		{"other", assert.AnError, errors.CodeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.CodeOf(classifyError(tt.err, "op")))
		})
	}
	assert.Nil(t, classifyError(nil, "op"))
}
