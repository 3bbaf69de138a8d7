package repository

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/model"
)

// videoColumns selects a video row together with its tag set and timestamp
// sequence, so every read observes a single snapshot.
const videoColumns = `v.id, v.channel_id, v.title, v.description, v.published_at, v.duration_seconds,
	v.view_count, v.like_count, v.thumbnail_url, v.status, v.downloaded, v.file_path, v.downloaded_at, v.last_synced_at,
	COALESCE((SELECT array_agg(t.value ORDER BY t.position) FROM video_tags t WHERE t.video_id = v.id), '{}') AS tags,
	` + timestampsAggregate + ` AS timestamps`

const timestampsAggregate = `COALESCE((SELECT jsonb_agg(jsonb_build_object('start_seconds', s.start_seconds, 'title', s.title, 'text', s.text) ORDER BY s.position)
		FROM timestamps s WHERE s.video_id = v.id), '[]'::jsonb)`

// videoRepository implements VideoRepository using PostgreSQL
type videoRepository struct {
	pool Pool
}

// NewVideoRepository creates a new instance of VideoRepository
func NewVideoRepository(pool Pool) VideoRepository {
	return &videoRepository{
		pool: pool,
	}
}

func scanVideo(row pgx.Row) (*model.Video, error) {
	var video model.Video
	err := row.Scan(
		&video.ID,
		&video.ChannelID,
		&video.Title,
		&video.Description,
		&video.PublishedAt,
		&video.DurationSeconds,
		&video.ViewCount,
		&video.LikeCount,
		&video.ThumbnailURL,
		&video.Status,
		&video.Downloaded,
		&video.FilePath,
		&video.DownloadedAt,
		&video.LastSyncedAt,
		&video.Tags,
		&video.Timestamps,
	)
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func collectVideos(rows pgx.Rows, operation string) ([]*model.Video, error) {
	defer rows.Close()

	videos := make([]*model.Video, 0)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan video row")
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, operation)
	}
	return videos, nil
}

// Upsert merges the video and replaces its owned sets atomically
func (r *videoRepository) Upsert(ctx context.Context, video *model.Video, tags []string, timestamps []model.Timestamp) (*model.Video, error) {
	if video == nil || video.ID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "video ID is required")
	}
	if video.ChannelID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "video channel ID is required")
	}

	var stored *model.Video
	err := inTx(ctx, r.pool, "failed to upsert video", func(tx pgx.Tx) error {
		sql := `INSERT INTO videos (id, channel_id, title, description, published_at, duration_seconds, view_count, like_count, thumbnail_url, status, last_synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'available', NOW())
			ON CONFLICT (id) DO UPDATE SET
				channel_id = EXCLUDED.channel_id,
				title = COALESCE(NULLIF(EXCLUDED.title, ''), videos.title),
				description = COALESCE(EXCLUDED.description, videos.description),
				published_at = COALESCE(EXCLUDED.published_at, videos.published_at),
				duration_seconds = COALESCE(EXCLUDED.duration_seconds, videos.duration_seconds),
				view_count = COALESCE(EXCLUDED.view_count, videos.view_count),
				like_count = COALESCE(EXCLUDED.like_count, videos.like_count),
				thumbnail_url = COALESCE(EXCLUDED.thumbnail_url, videos.thumbnail_url),
				status = 'available',
				last_synced_at = NOW()`
		_, err := tx.Exec(ctx, sql,
			video.ID,
			video.ChannelID,
			video.Title,
			video.Description,
			video.PublishedAt,
			video.DurationSeconds,
			video.ViewCount,
			video.LikeCount,
			video.ThumbnailURL,
		)
		if err != nil {
			return handlePostgreSQLError(err, "failed to upsert video")
		}

		if tags != nil {
			if err := replaceTags(ctx, tx, video.ID, tags); err != nil {
				return err
			}
		}

		if timestamps != nil {
			if err := replaceTimestamps(ctx, tx, video.ID, timestamps, true); err != nil {
				return err
			}
		}

		stored, err = scanVideo(tx.QueryRow(ctx, "SELECT "+videoColumns+" FROM videos v WHERE v.id = $1", video.ID))
		if err != nil {
			return handlePostgreSQLError(err, "failed to read back video")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// replaceTags swaps the full tag set of a video. Duplicates and blank tags are dropped.
func replaceTags(ctx context.Context, tx pgx.Tx, videoID string, tags []string) error {
	if _, err := tx.Exec(ctx, "DELETE FROM video_tags WHERE video_id = $1", videoID); err != nil {
		return handlePostgreSQLError(err, "failed to clear video tags")
	}

	seen := make(map[string]struct{}, len(tags))
	rows := make([][]any, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		rows = append(rows, []any{videoID, len(rows), tag})
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"video_tags"},
		[]string{"video_id", "position", "value"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return handlePostgreSQLError(err, "failed to insert video tags")
	}
	return nil
}

// replaceTimestamps swaps the timestamp sequence of a video, sorted by start time.
// With keepText, an incoming entry without text inherits the stored text of the
// entry with the same start and title.
func replaceTimestamps(ctx context.Context, tx pgx.Tx, videoID string, timestamps []model.Timestamp, keepText bool) error {
	sorted := SortTimestamps(timestamps)

	if keepText {
		existing, err := storedTimestampText(ctx, tx, videoID)
		if err != nil {
			return err
		}
		for i := range sorted {
			if sorted[i].Text == nil {
				sorted[i].Text = existing[timestampKey(sorted[i])]
			}
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM timestamps WHERE video_id = $1", videoID); err != nil {
		return handlePostgreSQLError(err, "failed to clear video timestamps")
	}
	if len(sorted) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(sorted))
	for i, ts := range sorted {
		rows = append(rows, []any{videoID, i, ts.StartSeconds, ts.Title, ts.Text})
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"timestamps"},
		[]string{"video_id", "position", "start_seconds", "title", "text"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return handlePostgreSQLError(err, "failed to insert video timestamps")
	}
	return nil
}

func storedTimestampText(ctx context.Context, tx pgx.Tx, videoID string) (map[string]*string, error) {
	rows, err := tx.Query(ctx, "SELECT start_seconds, title, text FROM timestamps WHERE video_id = $1 AND text IS NOT NULL", videoID)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to read video timestamps")
	}
	defer rows.Close()

	texts := make(map[string]*string)
	for rows.Next() {
		var ts model.Timestamp
		if err := rows.Scan(&ts.StartSeconds, &ts.Title, &ts.Text); err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan timestamp row")
		}
		texts[timestampKey(ts)] = ts.Text
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate timestamp rows")
	}
	return texts, nil
}

func timestampKey(ts model.Timestamp) string {
	return strconv.FormatFloat(ts.StartSeconds, 'f', 3, 64) + "\x00" + ts.Title
}

// SortTimestamps returns a copy of timestamps ordered by start time.
// Entries with equal start keep their input order.
func SortTimestamps(timestamps []model.Timestamp) []model.Timestamp {
	sorted := make([]model.Timestamp, len(timestamps))
	copy(sorted, timestamps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartSeconds < sorted[j].StartSeconds
	})
	return sorted
}

// GetByID retrieves a video by its ID
func (r *videoRepository) GetByID(ctx context.Context, id string) (*model.Video, error) {
	sql := "SELECT " + videoColumns + " FROM videos v WHERE v.id = $1"

	video, err := scanVideo(r.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "video not found: "+id)
		}
		return nil, handlePostgreSQLError(err, "failed to get video")
	}
	return video, nil
}

// GetByIDs retrieves the stored videos among ids
func (r *videoRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.Video, error) {
	if len(ids) == 0 {
		return []*model.Video{}, nil
	}

	sql := "SELECT " + videoColumns + " FROM videos v WHERE v.id = ANY($1) ORDER BY v.id"
	rows, err := r.pool.Query(ctx, sql, ids)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to get videos")
	}
	return collectVideos(rows, "failed to iterate video rows")
}

// List returns one page of videos. A page past the end is empty, not an error.
func (r *videoRepository) List(ctx context.Context, page, perPage int) (*model.VideoPage, error) {
	if page < 1 {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "page must be >= 1")
	}
	if perPage < 1 {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "per_page must be >= 1")
	}

	var total int64
	var items []*model.Video
	// Count and page come from one snapshot so the totals always describe the items.
	err := inReadTx(ctx, r.pool, "failed to list videos", func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM videos").Scan(&total); err != nil {
			return handlePostgreSQLError(err, "failed to count videos")
		}

		sql := "SELECT " + videoColumns + " FROM videos v ORDER BY v.last_synced_at DESC, v.id ASC LIMIT $1 OFFSET $2"
		rows, err := tx.Query(ctx, sql, perPage, (page-1)*perPage)
		if err != nil {
			return handlePostgreSQLError(err, "failed to list videos")
		}
		items, err = collectVideos(rows, "failed to iterate video rows")
		return err
	})
	if err != nil {
		return nil, err
	}

	return &model.VideoPage{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		TotalCount: int(total),
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}, nil
}

// ListByChannel returns the stored videos of a channel
func (r *videoRepository) ListByChannel(ctx context.Context, channelID string) ([]*model.Video, error) {
	sql := "SELECT " + videoColumns + " FROM videos v WHERE v.channel_id = $1 ORDER BY v.published_at DESC NULLS LAST, v.id"
	rows, err := r.pool.Query(ctx, sql, channelID)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to list channel videos")
	}
	return collectVideos(rows, "failed to iterate video rows")
}

// ListDownloaded returns every video flagged as downloaded
func (r *videoRepository) ListDownloaded(ctx context.Context) ([]*model.Video, error) {
	sql := "SELECT " + videoColumns + " FROM videos v WHERE v.downloaded ORDER BY v.id"
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to list downloaded videos")
	}
	return collectVideos(rows, "failed to iterate video rows")
}

// MarkDownloaded records the file path of a finished download
func (r *videoRepository) MarkDownloaded(ctx context.Context, id, path string) error {
	if path == "" {
		return apperrors.New(apperrors.CodeInvalidArg, "file path is required")
	}

	sql := "UPDATE videos SET downloaded = TRUE, file_path = $2, downloaded_at = NOW() WHERE id = $1"
	tag, err := r.pool.Exec(ctx, sql, id, path)
	if err != nil {
		return handlePostgreSQLError(err, "failed to mark video downloaded")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.CodeNotFound, "video not found: "+id)
	}
	return nil
}

// SetStatus records whether the provider still serves the video
func (r *videoRepository) SetStatus(ctx context.Context, id string, status model.VideoStatus) error {
	if status != model.VideoAvailable && status != model.VideoUnavailable {
		return apperrors.New(apperrors.CodeInvalidArg, "invalid video status: "+string(status))
	}

	tag, err := r.pool.Exec(ctx, "UPDATE videos SET status = $2 WHERE id = $1", id, string(status))
	if err != nil {
		return handlePostgreSQLError(err, "failed to set video status")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.CodeNotFound, "video not found: "+id)
	}
	return nil
}

// ListTags returns every tag with the number of videos carrying it, ordered by name
func (r *videoRepository) ListTags(ctx context.Context, limit int) ([]*model.TagCount, error) {
	sql := `SELECT value, COUNT(*) AS video_count
		FROM video_tags
		GROUP BY value
		ORDER BY value
		LIMIT $1`
	rows, err := r.pool.Query(ctx, sql, limitParam(limit))
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to list tags")
	}
	return collectTags(rows)
}

// ListChannelTags returns the tags used by at least minVideos videos of a channel, most used first
func (r *videoRepository) ListChannelTags(ctx context.Context, channelID string, minVideos, limit int) ([]*model.TagCount, error) {
	if minVideos < 1 {
		minVideos = 1
	}
	sql := `SELECT t.value, COUNT(DISTINCT v.id) AS video_count
		FROM video_tags t
		JOIN videos v ON v.id = t.video_id
		WHERE v.channel_id = $1
		GROUP BY t.value
		HAVING COUNT(DISTINCT v.id) >= $2
		ORDER BY video_count DESC, t.value
		LIMIT $3`
	rows, err := r.pool.Query(ctx, sql, channelID, minVideos, limitParam(limit))
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to list channel tags")
	}
	return collectTags(rows)
}

func collectTags(rows pgx.Rows) ([]*model.TagCount, error) {
	defer rows.Close()

	tags := make([]*model.TagCount, 0)
	for rows.Next() {
		var tag model.TagCount
		if err := rows.Scan(&tag.Name, &tag.VideoCount); err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan tag row")
		}
		tags = append(tags, &tag)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate tag rows")
	}
	return tags, nil
}

// ClearDownload resets the download state of a video
func (r *videoRepository) ClearDownload(ctx context.Context, id string) error {
	sql := "UPDATE videos SET downloaded = FALSE, file_path = NULL, downloaded_at = NULL WHERE id = $1"
	tag, err := r.pool.Exec(ctx, sql, id)
	if err != nil {
		return handlePostgreSQLError(err, "failed to clear video download")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.CodeNotFound, "video not found: "+id)
	}
	return nil
}

// Delete removes the video and everything it owns in one transaction.
// The channel and sibling videos are left untouched.
func (r *videoRepository) Delete(ctx context.Context, id string) error {
	return inTx(ctx, r.pool, "failed to delete video", func(tx pgx.Tx) error {
		owned := []string{
			"DELETE FROM playlist_videos WHERE video_id = $1",
			"DELETE FROM transcripts WHERE video_id = $1",
			"DELETE FROM timestamps WHERE video_id = $1",
			"DELETE FROM video_tags WHERE video_id = $1",
		}
		for _, sql := range owned {
			if _, err := tx.Exec(ctx, sql, id); err != nil {
				return handlePostgreSQLError(err, "failed to delete video dependents")
			}
		}

		tag, err := tx.Exec(ctx, "DELETE FROM videos WHERE id = $1", id)
		if err != nil {
			return handlePostgreSQLError(err, "failed to delete video")
		}
		if tag.RowsAffected() == 0 {
			return apperrors.New(apperrors.CodeNotFound, "video not found: "+id)
		}
		return nil
	})
}
