package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
	"github.com/Taichi-iskw/yt-library/internal/model"
)

const channelColumns = "id, name, description, subscriber_count, video_count, thumbnail_url, banner_url, content_breakdown, placeholder, last_synced_at"

// channelRepository implements ChannelRepository using PostgreSQL
type channelRepository struct {
	pool Pool
}

// NewChannelRepository creates a new instance of ChannelRepository
func NewChannelRepository(pool Pool) ChannelRepository {
	return &channelRepository{
		pool: pool,
	}
}

func scanChannel(row pgx.Row) (*model.Channel, error) {
	var channel model.Channel
	err := row.Scan(
		&channel.ID,
		&channel.Name,
		&channel.Description,
		&channel.SubscriberCount,
		&channel.VideoCount,
		&channel.ThumbnailURL,
		&channel.BannerURL,
		&channel.ContentBreakdown,
		&channel.Placeholder,
		&channel.LastSyncedAt,
	)
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// Upsert inserts the channel or merges it into the stored row.
// Nil optional fields keep the stored value.
func (r *channelRepository) Upsert(ctx context.Context, channel *model.Channel) (*model.Channel, error) {
	if channel == nil || channel.ID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "channel ID is required")
	}

	sql := `INSERT INTO channels (id, name, description, subscriber_count, video_count, thumbnail_url, banner_url, content_breakdown, placeholder, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), channels.name),
			description = COALESCE(EXCLUDED.description, channels.description),
			subscriber_count = COALESCE(EXCLUDED.subscriber_count, channels.subscriber_count),
			video_count = COALESCE(EXCLUDED.video_count, channels.video_count),
			thumbnail_url = COALESCE(EXCLUDED.thumbnail_url, channels.thumbnail_url),
			banner_url = COALESCE(EXCLUDED.banner_url, channels.banner_url),
			content_breakdown = COALESCE(EXCLUDED.content_breakdown, channels.content_breakdown),
			placeholder = FALSE,
			last_synced_at = NOW()
		RETURNING ` + channelColumns

	row := r.pool.QueryRow(ctx, sql,
		channel.ID,
		channel.Name,
		channel.Description,
		channel.SubscriberCount,
		channel.VideoCount,
		channel.ThumbnailURL,
		channel.BannerURL,
		jsonbParam(channel.ContentBreakdown),
	)

	stored, err := scanChannel(row)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to upsert channel")
	}
	return stored, nil
}

// EnsureExists creates a placeholder channel if none is stored under id
func (r *channelRepository) EnsureExists(ctx context.Context, id, name string) (bool, error) {
	if id == "" {
		return false, apperrors.New(apperrors.CodeInvalidArg, "channel ID is required")
	}
	if name == "" {
		name = id
	}

	sql := `INSERT INTO channels (id, name, placeholder, last_synced_at)
		VALUES ($1, $2, TRUE, NOW())
		ON CONFLICT (id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, sql, id, name)
	if err != nil {
		return false, handlePostgreSQLError(err, "failed to create placeholder channel")
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID retrieves a channel by its ID
func (r *channelRepository) GetByID(ctx context.Context, id string) (*model.Channel, error) {
	sql := "SELECT " + channelColumns + " FROM channels WHERE id = $1"

	channel, err := scanChannel(r.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "channel not found: "+id)
		}
		return nil, handlePostgreSQLError(err, "failed to get channel")
	}
	return channel, nil
}

// List retrieves all channels ordered by name
func (r *channelRepository) List(ctx context.Context) ([]*model.Channel, error) {
	sql := "SELECT " + channelColumns + " FROM channels ORDER BY name, id"
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to list channels")
	}
	defer rows.Close()

	channels := make([]*model.Channel, 0)
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan channel row")
		}
		channels = append(channels, channel)
	}

	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate channel rows")
	}

	return channels, nil
}
