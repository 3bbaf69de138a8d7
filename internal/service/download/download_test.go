package download

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/model"
	"github.com/Taichi-iskw/yt-library/internal/provider/providertest"
	"github.com/Taichi-iskw/yt-library/internal/repository/repotest"
)

const channelDir = "AC_DC_ Live [UC1]"

func setupStore() *repotest.Fake {
	store := repotest.New()
	store.PutChannel(&model.Channel{ID: "UC1", Name: "AC/DC: Live"})
	store.PutVideo(&model.Video{ID: "v1", ChannelID: "UC1", Title: "Thunderstruck"})
	store.PutVideo(&model.Video{ID: "v2", ChannelID: "UC1", Title: "Back in Black"})
	return store
}

// writeFile is a Run hook that creates the file yt-dlp would have written
func writeFile(name string) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		dir := args.String(2)
		_ = os.WriteFile(filepath.Join(dir, name), []byte("media"), 0644)
	}
}

func TestDownload(t *testing.T) {
	root := t.TempDir()
	store := setupStore()
	p := &providertest.Provider{}
	wantDir := filepath.Join(root, channelDir)
	wantPath := filepath.Join(wantDir, "v1.mp4")
	p.On("DownloadVideo", mock.Anything, "v1", wantDir).
		Run(writeFile("v1.mp4")).
		Return(wantPath, nil)

	s := NewService(p, store.Store(), Options{Root: root}, nil)
	path, err := s.Download(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, wantPath, path)
	assert.FileExists(t, path)

	video := store.Video("v1")
	assert.True(t, video.Downloaded)
	assert.Equal(t, wantPath, *video.FilePath)
	assert.NotNil(t, video.DownloadedAt)
	p.AssertExpectations(t)
}

func TestDownload_RepeatOverwritesSamePath(t *testing.T) {
	root := t.TempDir()
	store := setupStore()
	p := &providertest.Provider{}
	dir := filepath.Join(root, channelDir)
	p.On("DownloadVideo", mock.Anything, "v1", dir).
		Run(writeFile("v1.mp4")).
		Return(filepath.Join(dir, "v1.mp4"), nil).Twice()

	s := NewService(p, store.Store(), Options{Root: root}, nil)
	first, err := s.Download(context.Background(), "v1")
	require.NoError(t, err)
	second, err := s.Download(context.Background(), "v1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownload_TitleChangeKeepsOneFile(t *testing.T) {
	root := t.TempDir()
	store := setupStore()
	p := &providertest.Provider{}
	dir := filepath.Join(root, channelDir)
	p.On("DownloadVideo", mock.Anything, "v1", dir).
		Run(writeFile("v1.mp4")).
		Return(filepath.Join(dir, "v1.mp4"), nil).Twice()

	s := NewService(p, store.Store(), Options{Root: root}, nil)
	first, err := s.Download(context.Background(), "v1")
	require.NoError(t, err)

	renamed := store.Video("v1")
	renamed.Title = "Thunderstruck (Live at River Plate)"
	store.PutVideo(renamed)

	second, err := s.Download(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "v1.mp4", entries[0].Name())
}

func TestDownload_ChannelRenameRemovesPreviousFile(t *testing.T) {
	root := t.TempDir()
	store := setupStore()
	p := &providertest.Provider{}
	oldDir := filepath.Join(root, channelDir)
	newDir := filepath.Join(root, "AC_DC [UC1]")
	p.On("DownloadVideo", mock.Anything, "v1", oldDir).
		Run(writeFile("v1.mp4")).
		Return(filepath.Join(oldDir, "v1.mp4"), nil).Once()
	p.On("DownloadVideo", mock.Anything, "v1", newDir).
		Run(writeFile("v1.mp4")).
		Return(filepath.Join(newDir, "v1.mp4"), nil).Once()

	s := NewService(p, store.Store(), Options{Root: root}, nil)
	first, err := s.Download(context.Background(), "v1")
	require.NoError(t, err)

	store.PutChannel(&model.Channel{ID: "UC1", Name: "AC/DC"})
	second, err := s.Download(context.Background(), "v1")
	require.NoError(t, err)

	assert.NoFileExists(t, first)
	assert.FileExists(t, second)
	assert.Equal(t, second, *store.Video("v1").FilePath)
	p.AssertExpectations(t)
}

func TestDownload_PreviousFileOutsideRootIsKept(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "v1.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("media"), 0644))

	store := setupStore()
	video := store.Video("v1")
	video.Downloaded = true
	video.FilePath = &outside
	store.PutVideo(video)

	p := &providertest.Provider{}
	dir := filepath.Join(root, channelDir)
	p.On("DownloadVideo", mock.Anything, "v1", dir).
		Run(writeFile("v1.mp4")).
		Return(filepath.Join(dir, "v1.mp4"), nil)

	_, err := NewService(p, store.Store(), Options{Root: root}, nil).Download(context.Background(), "v1")
	require.NoError(t, err)
	assert.FileExists(t, outside)
}

func TestDownload_UnknownVideo(t *testing.T) {
	p := &providertest.Provider{}
	s := NewService(p, repotest.New().Store(), Options{Root: t.TempDir()}, nil)

	_, err := s.Download(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
	p.AssertNotCalled(t, "DownloadVideo", mock.Anything, mock.Anything, mock.Anything)
}

func TestDownload_DirectoryFailureIsIOError(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	p := &providertest.Provider{}
	s := NewService(p, setupStore().Store(), Options{Root: blocker}, nil)

	_, err := s.Download(context.Background(), "v1")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeIO, apperrors.CodeOf(err))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, filepath.Join(blocker, channelDir), appErr.Path)
}

func TestDownload_ProviderFailureLeavesStateUntouched(t *testing.T) {
	store := setupStore()
	p := &providertest.Provider{}
	p.On("DownloadVideo", mock.Anything, "v1", mock.Anything).
		Return("", apperrors.New(apperrors.CodeTransient, "HTTP Error 429"))

	s := NewService(p, store.Store(), Options{Root: t.TempDir()}, nil)
	_, err := s.Download(context.Background(), "v1")
	assert.True(t, apperrors.IsRetryable(err))
	assert.False(t, store.Video("v1").Downloaded)
	assert.Zero(t, store.Calls("videos.MarkDownloaded"))
}

func TestDownload_RecordFailureCarriesPath(t *testing.T) {
	store := setupStore()
	store.FailOn("videos.MarkDownloaded", apperrors.New(apperrors.CodeStorage, "connection reset"))
	p := &providertest.Provider{}
	p.On("DownloadVideo", mock.Anything, "v1", mock.Anything).Return("/lib/x/v1.mp4", nil)

	s := NewService(p, store.Store(), Options{Root: t.TempDir()}, nil)
	_, err := s.Download(context.Background(), "v1")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeStorage, appErr.Code)
	assert.Equal(t, "/lib/x/v1.mp4", appErr.Path)
}

func TestDownload_Timeout(t *testing.T) {
	p := &providertest.Provider{}
	p.On("DownloadVideo", mock.Anything, "v1", mock.Anything).
		Run(providertest.WaitForCancel).
		Return("", context.DeadlineExceeded)

	s := NewService(p, setupStore().Store(), Options{Root: t.TempDir(), Timeout: 20 * time.Millisecond}, nil)
	_, err := s.Download(context.Background(), "v1")
	assert.Equal(t, apperrors.CodeTransient, apperrors.CodeOf(err))
}

func TestCancel_StopsOnlyThatDownload(t *testing.T) {
	store := setupStore()
	p := &providertest.Provider{}
	p.On("DownloadVideo", mock.Anything, "v1", mock.Anything).
		Run(providertest.WaitForCancel).
		Return("", context.Canceled)
	release := make(chan struct{})
	p.On("DownloadVideo", mock.Anything, "v2", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return("/lib/v2.mp4", nil)

	s := NewService(p, store.Store(), Options{Root: t.TempDir()}, nil)

	var wg sync.WaitGroup
	var errV1, errV2 error
	wg.Add(2)
	go func() { defer wg.Done(); _, errV1 = s.Download(context.Background(), "v1") }()
	go func() { defer wg.Done(); _, errV2 = s.Download(context.Background(), "v2") }()

	require.Eventually(t, func() bool { return s.Cancel("v1") }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, apperrors.CodeTransient, apperrors.CodeOf(errV1))
	assert.NoError(t, errV2)
	assert.False(t, store.Video("v1").Downloaded)
	assert.True(t, store.Video("v2").Downloaded)
	assert.False(t, s.Cancel("v1"))
}

func TestDownload_SameVideoIsSerialized(t *testing.T) {
	p := &providertest.Provider{}
	var running, maxRunning int32
	p.On("DownloadVideo", mock.Anything, "v1", mock.Anything).
		Run(func(mock.Arguments) {
			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxRunning)
				if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}).
		Return("/lib/v1.mp4", nil)

	s := NewService(p, setupStore().Store(), Options{Root: t.TempDir()}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Download(context.Background(), "v1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
	p.AssertNumberOfCalls(t, "DownloadVideo", 3)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	present := filepath.Join(dir, "present.mp4")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0644))
	missing := filepath.Join(dir, "missing.mp4")

	store := setupStore()
	videos := store.Store().Videos
	require.NoError(t, videos.MarkDownloaded(ctx, "v1", present))
	require.NoError(t, videos.MarkDownloaded(ctx, "v2", missing))

	s := NewService(&providertest.Provider{}, store.Store(), Options{Root: dir}, nil)

	kept, err := s.Verify(ctx, store.Video("v1"))
	require.NoError(t, err)
	assert.True(t, kept.Downloaded)

	cleared, err := s.Verify(ctx, store.Video("v2"))
	require.NoError(t, err)
	assert.False(t, cleared.Downloaded)
	assert.Nil(t, cleared.FilePath)
	assert.False(t, store.Video("v2").Downloaded)
}

func TestVerifyAll(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	present := filepath.Join(dir, "present.mp4")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0644))

	store := setupStore()
	videos := store.Store().Videos
	require.NoError(t, videos.MarkDownloaded(ctx, "v1", present))
	require.NoError(t, videos.MarkDownloaded(ctx, "v2", filepath.Join(dir, "gone.mp4")))

	s := NewService(&providertest.Provider{}, store.Store(), Options{Root: dir}, nil)
	report, err := s.VerifyAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, []string{"v2"}, report.Cleared)
}

func TestChannelDirName(t *testing.T) {
	assert.Equal(t, "AC_DC_ Live [UC1]", ChannelDirName("AC/DC: Live", "UC1"))
	assert.Equal(t, "UC-x_1 [UC-x_1]", ChannelDirName("", "UC-x_1"))

	name, id, ok := ParseChannelDir("Rick Astley [UCuAXFkgsw1L7xaCfnd5JJOw]")
	require.True(t, ok)
	assert.Equal(t, "Rick Astley", name)
	assert.Equal(t, "UCuAXFkgsw1L7xaCfnd5JJOw", id)

	_, _, ok = ParseChannelDir("Rick Astley")
	assert.False(t, ok)
	_, _, ok = ParseChannelDir("[UC1]")
	assert.False(t, ok)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		fallback string
		want     string
	}{
		{"plain", "Rick Astley", "UC1", "Rick Astley"},
		{"separators", "AC/DC: Live", "UC1", "AC_DC_ Live"},
		{"reserved", `a*b?c"d<e>f|g\h`, "UC1", "a_b_c_d_e_f_g_h"},
		{"dots and spaces", "  ..hidden.. ", "UC1", "hidden"},
		{"control", "tab\there", "UC1", "tab_here"},
		{"empty uses fallback", "", "UC1", "UC1"},
		{"only reserved uses fallback", "///", "UC1", "UC1"},
		{"nothing usable", "", "", "unknown"},
		{"unicode kept", "日本語チャンネル", "UC1", "日本語チャンネル"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in, tt.fallback))
		})
	}

	long := SanitizeName(strings.Repeat("a", 150), "x")
	assert.Len(t, []rune(long), maxNameLength)
}
