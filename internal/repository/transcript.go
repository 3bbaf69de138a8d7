package repository

import (
	"context"

	"github.com/Taichi-iskw/yt-library/internal/model"
)

// TranscriptRepository defines operations for Transcript persistence
type TranscriptRepository interface {
	// Get returns the cached transcript of a video, including the NotFound outcome
	Get(ctx context.Context, videoID string) (*model.Transcript, error)

	// Save stores a transcript outcome. For an available transcript with
	// chapters the video's timestamp sequence is replaced in the same transaction.
	Save(ctx context.Context, transcript *model.Transcript) (*model.Transcript, error)

	// Annotate stores a transcript outcome whose chapters mirror the stored
	// timestamps. Only the text of matching stored entries is written, so a
	// concurrent chapter replacement is never reverted.
	Annotate(ctx context.Context, transcript *model.Transcript) (*model.Transcript, error)
}
