package repository

import (
	"context"

	"github.com/Taichi-iskw/yt-library/internal/model"
)

// ChannelRepository defines operations for Channel persistence
type ChannelRepository interface {
	// Upsert inserts or merges a fully fetched channel and clears its placeholder flag
	Upsert(ctx context.Context, channel *model.Channel) (*model.Channel, error)

	// EnsureExists inserts a placeholder row when the channel is unknown.
	// It reports whether a row was created and never touches an existing channel.
	EnsureExists(ctx context.Context, id, name string) (bool, error)

	// GetByID retrieves a channel by its ID
	GetByID(ctx context.Context, id string) (*model.Channel, error)

	// List retrieves all channels ordered by name
	List(ctx context.Context) ([]*model.Channel, error)
}
