package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/model"
)

const playlistColumns = `p.id, p.channel_id, p.title, p.description, p.video_count, p.last_synced_at,
	COALESCE((SELECT array_agg(pv.video_id ORDER BY pv.position) FROM playlist_videos pv WHERE pv.playlist_id = p.id), '{}') AS video_ids`

// playlistOrder maps a sort key to its ORDER BY clause
var playlistOrder = map[model.PlaylistSort]string{
	model.SortByPosition:    "pv.position",
	model.SortByPublishedAt: "v.published_at DESC NULLS LAST, pv.position",
	model.SortByTitle:       "v.title NULLS LAST, pv.position",
}

// playlistRepository implements PlaylistRepository using PostgreSQL
type playlistRepository struct {
	pool Pool
}

// NewPlaylistRepository creates a new instance of PlaylistRepository
func NewPlaylistRepository(pool Pool) PlaylistRepository {
	return &playlistRepository{
		pool: pool,
	}
}

func scanPlaylist(row pgx.Row) (*model.Playlist, error) {
	var playlist model.Playlist
	err := row.Scan(
		&playlist.ID,
		&playlist.ChannelID,
		&playlist.Title,
		&playlist.Description,
		&playlist.VideoCount,
		&playlist.LastSyncedAt,
		&playlist.VideoIDs,
	)
	if err != nil {
		return nil, err
	}
	return &playlist, nil
}

// Upsert merges the playlist and replaces its membership atomically
func (r *playlistRepository) Upsert(ctx context.Context, playlist *model.Playlist, memberIDs []string) (*model.Playlist, error) {
	if playlist == nil || playlist.ID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "playlist ID is required")
	}

	var stored *model.Playlist
	err := inTx(ctx, r.pool, "failed to upsert playlist", func(tx pgx.Tx) error {
		sql := `INSERT INTO playlists (id, channel_id, title, description, video_count, last_synced_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (id) DO UPDATE SET
				channel_id = COALESCE(EXCLUDED.channel_id, playlists.channel_id),
				title = COALESCE(NULLIF(EXCLUDED.title, ''), playlists.title),
				description = COALESCE(EXCLUDED.description, playlists.description),
				video_count = COALESCE(EXCLUDED.video_count, playlists.video_count),
				last_synced_at = NOW()`
		_, err := tx.Exec(ctx, sql,
			playlist.ID,
			playlist.ChannelID,
			playlist.Title,
			playlist.Description,
			playlist.VideoCount,
		)
		if err != nil {
			return handlePostgreSQLError(err, "failed to upsert playlist")
		}

		if memberIDs != nil {
			if err := replaceMembers(ctx, tx, playlist.ID, memberIDs); err != nil {
				return err
			}
		}

		stored, err = scanPlaylist(tx.QueryRow(ctx, "SELECT "+playlistColumns+" FROM playlists p WHERE p.id = $1", playlist.ID))
		if err != nil {
			return handlePostgreSQLError(err, "failed to read back playlist")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func replaceMembers(ctx context.Context, tx pgx.Tx, playlistID string, memberIDs []string) error {
	if _, err := tx.Exec(ctx, "DELETE FROM playlist_videos WHERE playlist_id = $1", playlistID); err != nil {
		return handlePostgreSQLError(err, "failed to clear playlist membership")
	}
	if len(memberIDs) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(memberIDs))
	for i, videoID := range memberIDs {
		rows = append(rows, []any{playlistID, i, videoID})
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"playlist_videos"},
		[]string{"playlist_id", "position", "video_id"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return handlePostgreSQLError(err, "failed to insert playlist membership")
	}
	return nil
}

// GetByID retrieves a playlist by its ID
func (r *playlistRepository) GetByID(ctx context.Context, id string) (*model.Playlist, error) {
	sql := "SELECT " + playlistColumns + " FROM playlists p WHERE p.id = $1"

	playlist, err := scanPlaylist(r.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "playlist not found: "+id)
		}
		return nil, handlePostgreSQLError(err, "failed to get playlist")
	}
	return playlist, nil
}

// List retrieves all playlists ordered by title
func (r *playlistRepository) List(ctx context.Context) ([]*model.Playlist, error) {
	sql := "SELECT " + playlistColumns + " FROM playlists p ORDER BY p.title, p.id"
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to list playlists")
	}
	defer rows.Close()

	playlists := make([]*model.Playlist, 0)
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan playlist row")
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate playlist rows")
	}

	return playlists, nil
}

// ListEntries returns playlist members joined with whatever video data is stored
func (r *playlistRepository) ListEntries(ctx context.Context, id string, sortBy model.PlaylistSort, limit int) ([]*model.PlaylistEntry, error) {
	if sortBy == "" {
		sortBy = model.SortByPosition
	}
	order, ok := playlistOrder[sortBy]
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "unsupported sort key: "+string(sortBy))
	}

	sql := `SELECT pv.position, pv.video_id
		FROM playlist_videos pv
		LEFT JOIN videos v ON v.id = pv.video_id
		WHERE pv.playlist_id = $1
		ORDER BY ` + order + `
		LIMIT $2`
	rows, err := r.pool.Query(ctx, sql, id, limitParam(limit))
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to list playlist entries")
	}

	entries := make([]*model.PlaylistEntry, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var entry model.PlaylistEntry
		if err := rows.Scan(&entry.Position, &entry.VideoID); err != nil {
			rows.Close()
			return nil, handlePostgreSQLError(err, "failed to scan playlist entry")
		}
		entries = append(entries, &entry)
		ids = append(ids, entry.VideoID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate playlist entries")
	}

	if len(ids) == 0 {
		return entries, nil
	}

	videos, err := NewVideoRepository(r.pool).GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}
	for _, entry := range entries {
		entry.Video = byID[entry.VideoID]
	}

	return entries, nil
}

// Delete removes a playlist and its membership. Member videos are kept.
func (r *playlistRepository) Delete(ctx context.Context, id string) error {
	return inTx(ctx, r.pool, "failed to delete playlist", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM playlist_videos WHERE playlist_id = $1", id); err != nil {
			return handlePostgreSQLError(err, "failed to delete playlist membership")
		}

		tag, err := tx.Exec(ctx, "DELETE FROM playlists WHERE id = $1", id)
		if err != nil {
			return handlePostgreSQLError(err, "failed to delete playlist")
		}
		if tag.RowsAffected() == 0 {
			return apperrors.New(apperrors.CodeNotFound, "playlist not found: "+id)
		}
		return nil
	})
}
