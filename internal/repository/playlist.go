package repository

import (
	"context"

	"github.com/Taichi-iskw/yt-library/internal/model"
)

// PlaylistRepository defines operations for Playlist persistence
type PlaylistRepository interface {
	// Upsert writes the playlist row and, when memberIDs is non-nil, replaces its membership
	Upsert(ctx context.Context, playlist *model.Playlist, memberIDs []string) (*model.Playlist, error)

	// GetByID retrieves a playlist with its ordered member IDs
	GetByID(ctx context.Context, id string) (*model.Playlist, error)

	// List retrieves all playlists ordered by title
	List(ctx context.Context) ([]*model.Playlist, error)

	// ListEntries returns the members of a playlist in the requested order.
	// Members not synced yet carry a nil Video. A non-positive limit returns all.
	ListEntries(ctx context.Context, id string, sortBy model.PlaylistSort, limit int) ([]*model.PlaylistEntry, error)

	// Delete removes a playlist and its membership rows
	Delete(ctx context.Context, id string) error
}
