package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Taichi-iskw/yt-library/internal/model"
)

// TranscriptCache keeps serialized transcripts in Redis.
// Redis failures never fail a read: they are logged and reported as a miss.
type TranscriptCache struct {
	client *Client
	ttl    time.Duration
}

// NewTranscriptCache creates a transcript cache with the given entry TTL
func NewTranscriptCache(client *Client, ttl time.Duration) *TranscriptCache {
	return &TranscriptCache{client: client, ttl: ttl}
}

// Get returns the cached transcript and whether it was found
func (c *TranscriptCache) Get(ctx context.Context, videoID string) (*model.Transcript, bool) {
	data, err := c.client.Get(ctx, c.client.KeyBuilder.KeyTranscript(videoID))
	if err != nil {
		return nil, false
	}

	var transcript model.Transcript
	if err := json.Unmarshal([]byte(data), &transcript); err != nil {
		c.client.log.Warn("Transcript cache corrupted, falling back to database",
			zap.String("video_id", videoID),
			zap.Error(err))
		_ = c.client.Delete(ctx, c.client.KeyBuilder.KeyTranscript(videoID))
		return nil, false
	}
	return &transcript, true
}

// Put stores a transcript; errors are logged and dropped
func (c *TranscriptCache) Put(ctx context.Context, transcript *model.Transcript) {
	data, err := json.Marshal(transcript)
	if err != nil {
		c.client.log.Warn("Failed to encode transcript for cache", zap.String("video_id", transcript.VideoID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.client.KeyBuilder.KeyTranscript(transcript.VideoID), data, c.ttl); err != nil {
		c.client.log.Warn("Transcript cache write failed", zap.String("video_id", transcript.VideoID), zap.Error(err))
	}
}

// Invalidate drops the cached transcript of a video
func (c *TranscriptCache) Invalidate(ctx context.Context, videoID string) {
	if err := c.client.Delete(ctx, c.client.KeyBuilder.KeyTranscript(videoID)); err != nil {
		c.client.log.Warn("Transcript cache invalidation failed", zap.String("video_id", videoID), zap.Error(err))
	}
}
