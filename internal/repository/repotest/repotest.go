// Package repotest provides an in-memory implementation of the repository
// interfaces for service tests. It follows the PostgreSQL merge rules: nil
// optional fields keep stored values, nil sets are preserved and non-nil sets
// replace, and deleting a video removes everything it owns.
package repotest

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/model"
	"github.com/Taichi-iskw/yt-library/internal/repository"
)

// Fake is an in-memory store
type Fake struct {
	mu          sync.Mutex
	channels    map[string]*model.Channel
	videos      map[string]*model.Video
	playlists   map[string]*model.Playlist
	transcripts map[string]*model.Transcript
	failures    map[string]error
	calls       map[string]int
	ticks       int64

	// BetweenVideoWrites runs after a video row is written and before its
	// tags and timestamps are replaced. Tests use it to widen the window in
	// which two unsynchronized upserts of one video could interleave.
	BetweenVideoWrites func(videoID string)
}

// New creates an empty Fake
func New() *Fake {
	return &Fake{
		channels:    make(map[string]*model.Channel),
		videos:      make(map[string]*model.Video),
		playlists:   make(map[string]*model.Playlist),
		transcripts: make(map[string]*model.Transcript),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
	}
}

// Store returns the repositories backed by f
func (f *Fake) Store() *repository.Store {
	return &repository.Store{
		Channels:    &channelRepo{f},
		Videos:      &videoRepo{f},
		Playlists:   &playlistRepo{f},
		Transcripts: &transcriptRepo{f},
	}
}

// FailOn makes the named operation (e.g. "videos.Upsert") return err
func (f *Fake) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// Calls returns how often the named operation ran
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Channel returns a copy of the stored channel, or nil
func (f *Fake) Channel(id string) *model.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.channels[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

// Video returns a copy of the stored video, or nil
func (f *Fake) Video(id string) *model.Video {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.videos[id]; ok {
		return copyVideo(v)
	}
	return nil
}

// Transcript returns a copy of the stored transcript row, or nil
func (f *Fake) Transcript(id string) *model.Transcript {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transcripts[id]; ok {
		cp := *t
		return &cp
	}
	return nil
}

// PutVideo stores v as is, creating its channel when missing
func (f *Fake) PutVideo(v *model.Video) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[v.ChannelID]; !ok {
		f.channels[v.ChannelID] = &model.Channel{ID: v.ChannelID, Name: v.ChannelID, LastSyncedAt: f.now()}
	}
	cp := copyVideo(v)
	if cp.LastSyncedAt.IsZero() {
		cp.LastSyncedAt = f.now()
	}
	f.videos[v.ID] = cp
}

// PutChannel stores c as is
func (f *Fake) PutChannel(c *model.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	if cp.LastSyncedAt.IsZero() {
		cp.LastSyncedAt = f.now()
	}
	f.channels[c.ID] = &cp
}

// PutPlaylist stores p as is
func (f *Fake) PutPlaylist(p *model.Playlist) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	cp.VideoIDs = append([]string{}, p.VideoIDs...)
	if cp.LastSyncedAt.IsZero() {
		cp.LastSyncedAt = f.now()
	}
	f.playlists[p.ID] = &cp
}

// begin records a call and returns the injected failure, with f.mu held on success
func (f *Fake) begin(op string) error {
	f.mu.Lock()
	f.calls[op]++
	if err := f.failures[op]; err != nil {
		f.mu.Unlock()
		return err
	}
	return nil
}

// now returns a strictly increasing clock; callers hold f.mu
func (f *Fake) now() time.Time {
	f.ticks++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.ticks) * time.Millisecond)
}

func copyVideo(v *model.Video) *model.Video {
	cp := *v
	cp.Tags = append([]string{}, v.Tags...)
	cp.Timestamps = append([]model.Timestamp{}, v.Timestamps...)
	return &cp
}

func notFound(kind, id string) error {
	return apperrors.New(apperrors.CodeNotFound, kind+" not found: "+id)
}

type channelRepo struct{ f *Fake }

func (r *channelRepo) Upsert(ctx context.Context, c *model.Channel) (*model.Channel, error) {
	if c == nil || c.ID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "channel ID is required")
	}
	if err := r.f.begin("channels.Upsert"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	stored, ok := r.f.channels[c.ID]
	if !ok {
		stored = &model.Channel{ID: c.ID}
		r.f.channels[c.ID] = stored
	}
	if c.Name != "" {
		stored.Name = c.Name
	}
	coalesce(&stored.Description, c.Description)
	coalesce(&stored.SubscriberCount, c.SubscriberCount)
	coalesce(&stored.VideoCount, c.VideoCount)
	coalesce(&stored.ThumbnailURL, c.ThumbnailURL)
	coalesce(&stored.BannerURL, c.BannerURL)
	if c.ContentBreakdown != nil {
		stored.ContentBreakdown = c.ContentBreakdown
	}
	stored.Placeholder = false
	stored.LastSyncedAt = r.f.now()

	cp := *stored
	return &cp, nil
}

func (r *channelRepo) EnsureExists(ctx context.Context, id, name string) (bool, error) {
	if id == "" {
		return false, apperrors.New(apperrors.CodeInvalidArg, "channel ID is required")
	}
	if err := r.f.begin("channels.EnsureExists"); err != nil {
		return false, err
	}
	defer r.f.mu.Unlock()

	if _, ok := r.f.channels[id]; ok {
		return false, nil
	}
	if name == "" {
		name = id
	}
	r.f.channels[id] = &model.Channel{ID: id, Name: name, Placeholder: true, LastSyncedAt: r.f.now()}
	return true, nil
}

func (r *channelRepo) GetByID(ctx context.Context, id string) (*model.Channel, error) {
	if err := r.f.begin("channels.GetByID"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	c, ok := r.f.channels[id]
	if !ok {
		return nil, notFound("channel", id)
	}
	cp := *c
	return &cp, nil
}

func (r *channelRepo) List(ctx context.Context) ([]*model.Channel, error) {
	if err := r.f.begin("channels.List"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	out := make([]*model.Channel, 0, len(r.f.channels))
	for _, c := range r.f.channels {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type videoRepo struct{ f *Fake }

func (r *videoRepo) Upsert(ctx context.Context, v *model.Video, tags []string, timestamps []model.Timestamp) (*model.Video, error) {
	if v == nil || v.ID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "video ID is required")
	}
	if err := r.f.begin("videos.Upsert"); err != nil {
		return nil, err
	}
	if _, ok := r.f.channels[v.ChannelID]; !ok {
		r.f.mu.Unlock()
		return nil, apperrors.New(apperrors.CodeDependency, "referenced channel does not exist")
	}

	stored, ok := r.f.videos[v.ID]
	if !ok {
		stored = &model.Video{ID: v.ID}
		r.f.videos[v.ID] = stored
	}
	stored.ChannelID = v.ChannelID
	if v.Title != "" {
		stored.Title = v.Title
	}
	coalesce(&stored.Description, v.Description)
	coalesce(&stored.PublishedAt, v.PublishedAt)
	coalesce(&stored.DurationSeconds, v.DurationSeconds)
	coalesce(&stored.ViewCount, v.ViewCount)
	coalesce(&stored.LikeCount, v.LikeCount)
	coalesce(&stored.ThumbnailURL, v.ThumbnailURL)
	stored.Status = model.VideoAvailable
	stored.LastSyncedAt = r.f.now()
	hook := r.f.BetweenVideoWrites
	r.f.mu.Unlock()

	if hook != nil {
		hook(v.ID)
	}

	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if tags != nil {
		stored.Tags = dedupTags(tags)
	}
	if timestamps != nil {
		stored.Timestamps = mergeTimestamps(stored.Timestamps, timestamps, true)
	}
	return copyVideo(stored), nil
}

func (r *videoRepo) GetByID(ctx context.Context, id string) (*model.Video, error) {
	if err := r.f.begin("videos.GetByID"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	v, ok := r.f.videos[id]
	if !ok {
		return nil, notFound("video", id)
	}
	return copyVideo(v), nil
}

func (r *videoRepo) GetByIDs(ctx context.Context, ids []string) ([]*model.Video, error) {
	if err := r.f.begin("videos.GetByIDs"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	out := make([]*model.Video, 0, len(ids))
	for _, id := range ids {
		if v, ok := r.f.videos[id]; ok {
			out = append(out, copyVideo(v))
		}
	}
	return out, nil
}

func (r *videoRepo) List(ctx context.Context, page, perPage int) (*model.VideoPage, error) {
	if page < 1 {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "page must be >= 1")
	}
	if perPage < 1 {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "per_page must be >= 1")
	}
	if err := r.f.begin("videos.List"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	all := r.sorted(func(a, b *model.Video) bool {
		if !a.LastSyncedAt.Equal(b.LastSyncedAt) {
			return a.LastSyncedAt.After(b.LastSyncedAt)
		}
		return a.ID < b.ID
	}, nil)

	items := make([]*model.Video, 0, perPage)
	for i := (page - 1) * perPage; i < len(all) && len(items) < perPage; i++ {
		items = append(items, all[i])
	}
	return &model.VideoPage{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		TotalCount: len(all),
		TotalPages: int(math.Ceil(float64(len(all)) / float64(perPage))),
	}, nil
}

func (r *videoRepo) ListByChannel(ctx context.Context, channelID string) ([]*model.Video, error) {
	if err := r.f.begin("videos.ListByChannel"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	return r.sorted(func(a, b *model.Video) bool {
		switch {
		case a.PublishedAt == nil && b.PublishedAt == nil:
		case a.PublishedAt == nil:
			return false
		case b.PublishedAt == nil:
			return true
		case !a.PublishedAt.Equal(*b.PublishedAt):
			return a.PublishedAt.After(*b.PublishedAt)
		}
		return a.ID < b.ID
	}, func(v *model.Video) bool { return v.ChannelID == channelID }), nil
}

func (r *videoRepo) ListDownloaded(ctx context.Context) ([]*model.Video, error) {
	if err := r.f.begin("videos.ListDownloaded"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	return r.sorted(func(a, b *model.Video) bool { return a.ID < b.ID },
		func(v *model.Video) bool { return v.Downloaded }), nil
}

// sorted copies the videos matching keep, ordered by less; callers hold f.mu
func (r *videoRepo) sorted(less func(a, b *model.Video) bool, keep func(v *model.Video) bool) []*model.Video {
	out := make([]*model.Video, 0, len(r.f.videos))
	for _, v := range r.f.videos {
		if keep == nil || keep(v) {
			out = append(out, copyVideo(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (r *videoRepo) MarkDownloaded(ctx context.Context, id, path string) error {
	if path == "" {
		return apperrors.New(apperrors.CodeInvalidArg, "file path is required")
	}
	if err := r.f.begin("videos.MarkDownloaded"); err != nil {
		return err
	}
	defer r.f.mu.Unlock()

	v, ok := r.f.videos[id]
	if !ok {
		return notFound("video", id)
	}
	at := r.f.now()
	v.Downloaded = true
	v.FilePath = &path
	v.DownloadedAt = &at
	return nil
}

func (r *videoRepo) SetStatus(ctx context.Context, id string, status model.VideoStatus) error {
	if status != model.VideoAvailable && status != model.VideoUnavailable {
		return apperrors.New(apperrors.CodeInvalidArg, "invalid video status: "+string(status))
	}
	if err := r.f.begin("videos.SetStatus"); err != nil {
		return err
	}
	defer r.f.mu.Unlock()

	v, ok := r.f.videos[id]
	if !ok {
		return notFound("video", id)
	}
	v.Status = status
	return nil
}

func (r *videoRepo) ListTags(ctx context.Context, limit int) ([]*model.TagCount, error) {
	if err := r.f.begin("videos.ListTags"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	tags := r.countTags(func(v *model.Video) bool { return true }, 1)
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return truncateTags(tags, limit), nil
}

func (r *videoRepo) ListChannelTags(ctx context.Context, channelID string, minVideos, limit int) ([]*model.TagCount, error) {
	if err := r.f.begin("videos.ListChannelTags"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	tags := r.countTags(func(v *model.Video) bool { return v.ChannelID == channelID }, minVideos)
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].VideoCount != tags[j].VideoCount {
			return tags[i].VideoCount > tags[j].VideoCount
		}
		return tags[i].Name < tags[j].Name
	})
	return truncateTags(tags, limit), nil
}

// countTags counts the videos matching keep per tag; callers hold f.mu
func (r *videoRepo) countTags(keep func(v *model.Video) bool, minVideos int) []*model.TagCount {
	counts := make(map[string]int64)
	for _, v := range r.f.videos {
		if !keep(v) {
			continue
		}
		for _, tag := range v.Tags {
			counts[tag]++
		}
	}
	out := make([]*model.TagCount, 0, len(counts))
	for name, n := range counts {
		if n >= int64(minVideos) {
			out = append(out, &model.TagCount{Name: name, VideoCount: n})
		}
	}
	return out
}

func truncateTags(tags []*model.TagCount, limit int) []*model.TagCount {
	if limit > 0 && len(tags) > limit {
		return tags[:limit]
	}
	return tags
}

func (r *videoRepo) ClearDownload(ctx context.Context, id string) error {
	if err := r.f.begin("videos.ClearDownload"); err != nil {
		return err
	}
	defer r.f.mu.Unlock()

	v, ok := r.f.videos[id]
	if !ok {
		return notFound("video", id)
	}
	v.Downloaded = false
	v.FilePath = nil
	v.DownloadedAt = nil
	return nil
}

func (r *videoRepo) Delete(ctx context.Context, id string) error {
	if err := r.f.begin("videos.Delete"); err != nil {
		return err
	}
	defer r.f.mu.Unlock()

	if _, ok := r.f.videos[id]; !ok {
		return notFound("video", id)
	}
	delete(r.f.videos, id)
	delete(r.f.transcripts, id)
	for _, p := range r.f.playlists {
		kept := p.VideoIDs[:0]
		for _, member := range p.VideoIDs {
			if member != id {
				kept = append(kept, member)
			}
		}
		p.VideoIDs = kept
	}
	return nil
}

type playlistRepo struct{ f *Fake }

func (r *playlistRepo) Upsert(ctx context.Context, p *model.Playlist, memberIDs []string) (*model.Playlist, error) {
	if p == nil || p.ID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "playlist ID is required")
	}
	if err := r.f.begin("playlists.Upsert"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	if p.ChannelID != nil {
		if _, ok := r.f.channels[*p.ChannelID]; !ok {
			return nil, apperrors.New(apperrors.CodeDependency, "referenced channel does not exist")
		}
	}

	stored, ok := r.f.playlists[p.ID]
	if !ok {
		stored = &model.Playlist{ID: p.ID}
		r.f.playlists[p.ID] = stored
	}
	coalesce(&stored.ChannelID, p.ChannelID)
	if p.Title != "" {
		stored.Title = p.Title
	}
	coalesce(&stored.Description, p.Description)
	coalesce(&stored.VideoCount, p.VideoCount)
	if memberIDs != nil {
		stored.VideoIDs = append([]string{}, memberIDs...)
	}
	stored.LastSyncedAt = r.f.now()

	cp := *stored
	cp.VideoIDs = append([]string{}, stored.VideoIDs...)
	return &cp, nil
}

func (r *playlistRepo) GetByID(ctx context.Context, id string) (*model.Playlist, error) {
	if err := r.f.begin("playlists.GetByID"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	p, ok := r.f.playlists[id]
	if !ok {
		return nil, notFound("playlist", id)
	}
	cp := *p
	cp.VideoIDs = append([]string{}, p.VideoIDs...)
	return &cp, nil
}

func (r *playlistRepo) List(ctx context.Context) ([]*model.Playlist, error) {
	if err := r.f.begin("playlists.List"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	out := make([]*model.Playlist, 0, len(r.f.playlists))
	for _, p := range r.f.playlists {
		cp := *p
		cp.VideoIDs = append([]string{}, p.VideoIDs...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *playlistRepo) ListEntries(ctx context.Context, id string, sortBy model.PlaylistSort, limit int) ([]*model.PlaylistEntry, error) {
	switch sortBy {
	case "", model.SortByPosition, model.SortByPublishedAt, model.SortByTitle:
	default:
		return nil, apperrors.New(apperrors.CodeInvalidArg, "unsupported sort key: "+string(sortBy))
	}
	if err := r.f.begin("playlists.ListEntries"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	p, ok := r.f.playlists[id]
	if !ok {
		return []*model.PlaylistEntry{}, nil
	}

	entries := make([]*model.PlaylistEntry, 0, len(p.VideoIDs))
	for i, videoID := range p.VideoIDs {
		entry := &model.PlaylistEntry{Position: i, VideoID: videoID}
		if v, ok := r.f.videos[videoID]; ok {
			entry.Video = copyVideo(v)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Video, entries[j].Video
		switch sortBy {
		case model.SortByPublishedAt:
			if a == nil || a.PublishedAt == nil {
				return false
			}
			if b == nil || b.PublishedAt == nil {
				return true
			}
			return a.PublishedAt.After(*b.PublishedAt)
		case model.SortByTitle:
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.Title < b.Title
		}
		return false
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *playlistRepo) Delete(ctx context.Context, id string) error {
	if err := r.f.begin("playlists.Delete"); err != nil {
		return err
	}
	defer r.f.mu.Unlock()

	if _, ok := r.f.playlists[id]; !ok {
		return notFound("playlist", id)
	}
	delete(r.f.playlists, id)
	return nil
}

type transcriptRepo struct{ f *Fake }

func (r *transcriptRepo) Get(ctx context.Context, videoID string) (*model.Transcript, error) {
	if err := r.f.begin("transcripts.Get"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	t, ok := r.f.transcripts[videoID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "no cached transcript for video "+videoID)
	}
	return r.withChapters(t), nil
}

func (r *transcriptRepo) Save(ctx context.Context, t *model.Transcript) (*model.Transcript, error) {
	if t == nil || t.VideoID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "transcript video ID is required")
	}
	if err := r.f.begin("transcripts.Save"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	v, ok := r.f.videos[t.VideoID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeDependency, "referenced video does not exist")
	}

	row := &model.Transcript{
		VideoID:   t.VideoID,
		Status:    t.Status,
		Language:  t.Language,
		PlainText: t.PlainText,
		FetchedAt: r.f.now(),
	}
	r.f.transcripts[t.VideoID] = row
	if t.Status == model.TranscriptAvailable && t.Chapters != nil {
		v.Timestamps = mergeTimestamps(nil, t.Chapters, false)
	}
	return r.withChapters(row), nil
}

func (r *transcriptRepo) Annotate(ctx context.Context, t *model.Transcript) (*model.Transcript, error) {
	if t == nil || t.VideoID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "transcript video ID is required")
	}
	if err := r.f.begin("transcripts.Annotate"); err != nil {
		return nil, err
	}
	defer r.f.mu.Unlock()

	v, ok := r.f.videos[t.VideoID]
	if !ok {
		return nil, apperrors.New(apperrors.CodeDependency, "referenced video does not exist")
	}

	row := &model.Transcript{
		VideoID:   t.VideoID,
		Status:    t.Status,
		Language:  t.Language,
		PlainText: t.PlainText,
		FetchedAt: r.f.now(),
	}
	r.f.transcripts[t.VideoID] = row
	if t.Status == model.TranscriptAvailable {
		for i := range v.Timestamps {
			for _, ch := range t.Chapters {
				if ch.StartSeconds == v.Timestamps[i].StartSeconds && ch.Title == v.Timestamps[i].Title {
					v.Timestamps[i].Text = ch.Text
					break
				}
			}
		}
	}
	return r.withChapters(row), nil
}

// withChapters attaches the video's timestamps; callers hold f.mu
func (r *transcriptRepo) withChapters(t *model.Transcript) *model.Transcript {
	cp := *t
	cp.Chapters = []model.Timestamp{}
	if v, ok := r.f.videos[t.VideoID]; ok {
		cp.Chapters = append(cp.Chapters, v.Timestamps...)
	}
	return &cp
}

func coalesce[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func dedupTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func mergeTimestamps(existing, incoming []model.Timestamp, keepText bool) []model.Timestamp {
	sorted := repository.SortTimestamps(incoming)
	if !keepText {
		return sorted
	}
	for i := range sorted {
		if sorted[i].Text != nil {
			continue
		}
		for _, old := range existing {
			if old.StartSeconds == sorted[i].StartSeconds && old.Title == sorted[i].Title {
				sorted[i].Text = old.Text
				break
			}
		}
	}
	return sorted
}
